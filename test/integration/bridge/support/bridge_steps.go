package support

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/MeKo-Tech/scanbridge/internal/barcode"
	"github.com/MeKo-Tech/scanbridge/internal/native"
	"github.com/MeKo-Tech/scanbridge/internal/testutil"
	"github.com/cucumber/godog"
)

// aCameraShowing serves a single label with the given symbology.
func (testCtx *TestContext) aCameraShowing(formatName, text string) error {
	config := testutil.DefaultLabelConfig()
	config.Text = text
	if formatName != "QR code" {
		f, ok := barcode.ParseFormat(formatName)
		if !ok {
			return fmt.Errorf("unknown format %q", formatName)
		}
		config.Format = f
		if f != barcode.FormatQR {
			config.Symbol = testutil.ImageSize{Width: 560, Height: 120}
			config.Size = testutil.PageSize
		}
	}
	label, err := testutil.GenerateLabel(config)
	if err != nil {
		return err
	}
	testCtx.Opener = staticOpener(label)
	return nil
}

// aCameraWithBlankFramesThen shows empty frames before the symbol.
func (testCtx *TestContext) aCameraWithBlankFramesThen(blanks int, text string) error {
	config := testutil.DefaultLabelConfig()
	config.Text = text
	label, err := testutil.GenerateLabel(config)
	if err != nil {
		return err
	}
	frames := make([]image.Image, 0, blanks+1)
	for i := 0; i < blanks; i++ {
		frames = append(frames, testutil.CreateTestImage(testutil.LabelSize.Width, testutil.LabelSize.Height, color.White))
	}
	testCtx.Opener = staticOpener(append(frames, label)...)
	return nil
}

func staticOpener(frames ...image.Image) native.CameraOpener {
	return func(context.Context) (native.Camera, error) {
		return native.NewStaticCamera(frames...), nil
	}
}

func (testCtx *TestContext) aCameraThatNeverFindsABarcode() error {
	testCtx.Opener = func(context.Context) (native.Camera, error) {
		return native.CameraFunc(func(ctx context.Context) (image.Image, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}), nil
	}
	return nil
}

func (testCtx *TestContext) aCameraWithNoFrames() error {
	testCtx.Opener = staticOpener()
	return nil
}

func (testCtx *TestContext) noCameraIsAttached() error {
	testCtx.Opener = nil
	return nil
}

func (testCtx *TestContext) encodedImagesAreStored() error {
	testCtx.OutputDir = filepath.Join(testCtx.TempDir, "codes")
	return nil
}

func (testCtx *TestContext) iStartAScan(name string) error {
	call := NewCall()
	testCtx.Calls[name] = call
	testCtx.ensureBridge().Scan(call.Success, call.Failure)
	return nil
}

func (testCtx *TestContext) iStartAScanWithoutASuccessCallback() error {
	call := NewCall()
	testCtx.Calls["scan"] = call
	testCtx.ensureBridge().Scan(nil, call.Failure)
	return nil
}

func (testCtx *TestContext) iCancelTheScan() error {
	call := NewCall()
	testCtx.Calls["cancel"] = call
	testCtx.ensureBridge().Cancel(call.Success, call.Failure)
	return nil
}

func (testCtx *TestContext) iCancelTheScanWithoutAnErrorCallback() error {
	call := NewCall()
	testCtx.Calls["cancel"] = call
	testCtx.ensureBridge().Cancel(call.Success, nil)
	return nil
}

func (testCtx *TestContext) iEncode(data, typ string) error {
	return testCtx.encode(data, typ, nil)
}

func (testCtx *TestContext) iEncodeWithOptions(data, typ string, table *godog.Table) error {
	options := map[string]any{}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return errors.New("options table needs two columns")
		}
		key, value := row.Cells[0].Value, row.Cells[1].Value
		if n, err := strconv.Atoi(value); err == nil {
			options[key] = n
			continue
		}
		options[key] = value
	}
	return testCtx.encode(data, typ, options)
}

func (testCtx *TestContext) encode(data, typ string, options map[string]any) error {
	call := NewCall()
	testCtx.Calls["encode"] = call
	testCtx.ensureBridge().Encode(typ, data, call.Success, call.Failure, options)
	return nil
}

// succeeded waits for name and returns its success payload.
func (testCtx *TestContext) succeeded(name string) (any, error) {
	call, ok := testCtx.Calls[name]
	if !ok {
		return nil, fmt.Errorf("no %s was started", name)
	}
	ok, payload, err := call.Wait(CallTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s failed with %v", name, payload)
	}
	return payload, nil
}

func (testCtx *TestContext) failedWith(name, want string) error {
	call, ok := testCtx.Calls[name]
	if !ok {
		return fmt.Errorf("no %s was started", name)
	}
	ok, payload, err := call.Wait(CallTimeout)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if ok {
		return fmt.Errorf("%s succeeded with %v, expected failure %q", name, payload, want)
	}
	if got := fmt.Sprint(payload); got != want {
		return fmt.Errorf("%s failed with %q, expected %q", name, got, want)
	}
	return nil
}

func (testCtx *TestContext) scanResult(name string) (barcode.ScanResult, error) {
	payload, err := testCtx.succeeded(name)
	if err != nil {
		return barcode.ScanResult{}, err
	}
	return barcode.ParseScanResult(payload)
}

func (testCtx *TestContext) theScanShouldSucceedWith(text, format string) error {
	res, err := testCtx.scanResult("scan")
	if err != nil {
		return err
	}
	want := barcode.ScanResult{Text: text, Format: format}
	if res != want {
		return fmt.Errorf("expected %+v, got %+v", want, res)
	}
	return nil
}

func (testCtx *TestContext) theScanShouldReportCancelled() error {
	res, err := testCtx.scanResult("scan")
	if err != nil {
		return err
	}
	if res != barcode.CancelledScan() {
		return fmt.Errorf("expected a cancelled result, got %+v", res)
	}
	return nil
}

func (testCtx *TestContext) theCallShouldFailWith(name, want string) error {
	return testCtx.failedWith(name, want)
}

func (testCtx *TestContext) theCancelShouldSucceed() error {
	_, err := testCtx.succeeded("cancel")
	return err
}

func (testCtx *TestContext) theCallbackShouldFireOnce(name string) error {
	call, ok := testCtx.Calls[name]
	if !ok {
		return fmt.Errorf("no %s was started", name)
	}
	if _, _, err := call.Wait(CallTimeout); err != nil {
		return err
	}
	// Give a stray second resolution the chance to show up.
	time.Sleep(50 * time.Millisecond)
	if n := call.Resolutions(); n != 1 {
		return fmt.Errorf("%s resolved %d times", name, n)
	}
	return nil
}

func (testCtx *TestContext) theCallbackShouldNotFire(name string) error {
	call, ok := testCtx.Calls[name]
	if !ok {
		return fmt.Errorf("no %s was started", name)
	}
	time.Sleep(200 * time.Millisecond)
	if n := call.Resolutions(); n != 0 {
		return fmt.Errorf("%s resolved %d times", name, n)
	}
	return nil
}

func (testCtx *TestContext) nothingShouldReachTheNativeScanner() error {
	testCtx.ensureBridge()
	if ops := testCtx.Recorder.Operations(); len(ops) > 0 {
		return fmt.Errorf("expected no dispatch, got %v", ops)
	}
	if call, ok := testCtx.Calls["scan"]; ok {
		if _, _, err := call.Wait(100 * time.Millisecond); err == nil {
			return errors.New("the scan resolved although it was never dispatched")
		}
	}
	return nil
}

func (testCtx *TestContext) theNativeScannerShouldHaveReceived(ops *godog.Table) error {
	var want []string
	for _, row := range ops.Rows {
		want = append(want, row.Cells[0].Value)
	}
	if got := testCtx.Recorder.Operations(); !slices.Equal(got, want) {
		return fmt.Errorf("expected operations %v, got %v", want, got)
	}
	return nil
}

func (testCtx *TestContext) encodeResult() (barcode.EncodeResult, error) {
	payload, err := testCtx.succeeded("encode")
	if err != nil {
		return barcode.EncodeResult{}, err
	}
	return barcode.ParseEncodeResult(payload)
}

func (testCtx *TestContext) theEncodeShouldSucceedWithFormat(format string) error {
	res, err := testCtx.encodeResult()
	if err != nil {
		return err
	}
	if res.Format != format {
		return fmt.Errorf("expected format %s, got %s", format, res.Format)
	}
	return nil
}

func (testCtx *TestContext) encodedImage() (image.Image, error) {
	res, err := testCtx.encodeResult()
	if err != nil {
		return nil, err
	}
	data := res.Image
	if res.File != "" {
		if data, err = os.ReadFile(res.File); err != nil {
			return nil, err
		}
	}
	if len(data) == 0 {
		return nil, errors.New("encode result carries neither an image nor a file")
	}
	return png.Decode(bytes.NewReader(data))
}

func (testCtx *TestContext) theEncodedImageShouldDecodeTo(text string) error {
	img, err := testCtx.encodedImage()
	if err != nil {
		return err
	}
	results, err := barcode.NewBackend().Decode(context.Background(), img, barcode.Options{})
	if err != nil {
		return fmt.Errorf("failed to decode encoded image: %w", err)
	}
	if len(results) == 0 {
		return errors.New("encoded image holds no symbol")
	}
	if results[0].Text != text {
		return fmt.Errorf("expected %q, got %q", text, results[0].Text)
	}
	return nil
}

func (testCtx *TestContext) theEncodedImageShouldBe(width, height int) error {
	img, err := testCtx.encodedImage()
	if err != nil {
		return err
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		return fmt.Errorf("expected %dx%d, got %dx%d", width, height, b.Dx(), b.Dy())
	}
	return nil
}

func (testCtx *TestContext) theEncodedImageShouldBeStored() error {
	res, err := testCtx.encodeResult()
	if err != nil {
		return err
	}
	if filepath.Dir(res.File) != testCtx.OutputDir {
		return fmt.Errorf("expected a file in %s, got %q", testCtx.OutputDir, res.File)
	}
	if len(res.Image) != 0 {
		return errors.New("stored result should not carry the image inline")
	}
	return nil
}

func (testCtx *TestContext) theEncodeDescriptorShouldList(table *godog.Table) error {
	types := testCtx.ensureBridge().EncodeTypes()
	if types.Len() != len(table.Rows) {
		return fmt.Errorf("expected %d encode types, got %d", len(table.Rows), types.Len())
	}
	for _, row := range table.Rows {
		name := row.Cells[0].Value
		if v, ok := types.Value(name); !ok || v != name {
			return fmt.Errorf("encode type %s maps to %q", name, v)
		}
	}
	return nil
}

func (testCtx *TestContext) theFormatDescriptorShouldMap(name string, code int) error {
	f, ok := testCtx.ensureBridge().Formats().Code(name)
	if !ok {
		return fmt.Errorf("format %s is missing", name)
	}
	if int(f) != code {
		return fmt.Errorf("format %s maps to %d, expected %d", name, int(f), code)
	}
	return nil
}

func (testCtx *TestContext) theFormatDescriptorShouldHaveEntries(n int) error {
	if got := testCtx.ensureBridge().Formats().Len(); got != n {
		return fmt.Errorf("expected %d formats, got %d", n, got)
	}
	return nil
}

// RegisterBridgeSteps registers camera, scan, cancel, encode and descriptor steps.
func (testCtx *TestContext) RegisterBridgeSteps(sc *godog.ScenarioContext) {
	// Camera setup
	sc.Step(`^a camera showing a (QR code|\S+ barcode) with text "([^"]*)"$`, func(kind, text string) error {
		if kind != "QR code" {
			kind = kind[:len(kind)-len(" barcode")]
		}
		return testCtx.aCameraShowing(kind, text)
	})
	sc.Step(`^a camera showing (\d+) blank frames? then a QR code with text "([^"]*)"$`,
		testCtx.aCameraWithBlankFramesThen)
	sc.Step(`^a camera that never finds a barcode$`, testCtx.aCameraThatNeverFindsABarcode)
	sc.Step(`^a camera with no frames$`, testCtx.aCameraWithNoFrames)
	sc.Step(`^no camera is attached$`, testCtx.noCameraIsAttached)
	sc.Step(`^encoded images are stored in an output directory$`, testCtx.encodedImagesAreStored)

	// Operations
	sc.Step(`^I start a scan$`, func() error { return testCtx.iStartAScan("scan") })
	sc.Step(`^I start a second scan$`, func() error { return testCtx.iStartAScan("second scan") })
	sc.Step(`^I start a scan without a success callback$`, testCtx.iStartAScanWithoutASuccessCallback)
	sc.Step(`^I cancel the scan$`, testCtx.iCancelTheScan)
	sc.Step(`^I cancel the scan without an error callback$`, testCtx.iCancelTheScanWithoutAnErrorCallback)
	sc.Step(`^I encode "([^"]*)" as ([A-Z_]+)$`, testCtx.iEncode)
	sc.Step(`^I encode "([^"]*)" as ([A-Z_]+) with options:$`, testCtx.iEncodeWithOptions)

	// Outcomes
	sc.Step(`^the scan should succeed with text "([^"]*)" and format "([^"]*)"$`, testCtx.theScanShouldSucceedWith)
	sc.Step(`^the scan should report cancelled$`, testCtx.theScanShouldReportCancelled)
	sc.Step(`^the (scan|second scan|cancel|encode) should fail with "([^"]*)"$`, testCtx.theCallShouldFailWith)
	sc.Step(`^the cancel should succeed$`, testCtx.theCancelShouldSucceed)
	sc.Step(`^the (scan|cancel|encode) callback should fire exactly once$`, testCtx.theCallbackShouldFireOnce)
	sc.Step(`^the (scan|cancel|encode) callback should not fire$`, testCtx.theCallbackShouldNotFire)
	sc.Step(`^nothing should reach the native scanner$`, testCtx.nothingShouldReachTheNativeScanner)
	sc.Step(`^the native scanner should have received:$`, testCtx.theNativeScannerShouldHaveReceived)
	sc.Step(`^the encode should succeed with format "([^"]*)"$`, testCtx.theEncodeShouldSucceedWithFormat)
	sc.Step(`^the encoded image should decode to "([^"]*)"$`, testCtx.theEncodedImageShouldDecodeTo)
	sc.Step(`^the encoded image should be (\d+)x(\d+) pixels$`, testCtx.theEncodedImageShouldBe)
	sc.Step(`^the encoded image should be stored in the output directory$`, testCtx.theEncodedImageShouldBeStored)

	// Descriptors
	sc.Step(`^the encode descriptor should list:$`, testCtx.theEncodeDescriptorShouldList)
	sc.Step(`^the format descriptor should map "([^"]*)" to (\d+)$`, testCtx.theFormatDescriptorShouldMap)
	sc.Step(`^the format descriptor should have (\d+) entries$`, testCtx.theFormatDescriptorShouldHaveEntries)
}
