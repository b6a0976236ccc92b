// Package pdf pulls embedded raster images out of PDF documents so they can
// be fed to the barcode decoder as scan frames.
package pdf

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/tiff"
)

// Page holds the images extracted from a single PDF page.
type Page struct {
	Number int
	Images []image.Image
}

// ExtractImages extracts all images from a PDF file using pdfcpu's extract
// functionality. Pages are returned in ascending page order; pages without
// images are omitted.
func ExtractImages(filename string, pageRange string) ([]Page, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "scanbridge-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var pageStrings []string
	if len(pageNumbers) > 0 {
		pageStrings = make([]string, len(pageNumbers))
		for i, pageNum := range pageNumbers {
			pageStrings[i] = strconv.Itoa(pageNum)
		}
	}

	if err := api.ExtractImagesFile(filename, tempDir, pageStrings, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	byPage, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}

	pages := make([]Page, 0, len(byPage))
	for num, imgs := range byPage {
		pages = append(pages, Page{Number: num, Images: imgs})
	}
	slices.SortFunc(pages, func(a, b Page) int { return a.Number - b.Number })
	return pages, nil
}

// Frames flattens pages into a single image sequence in page order.
func Frames(pages []Page) []image.Image {
	var out []image.Image
	for _, p := range pages {
		out = append(out, p.Images...)
	}
	return out
}

// loadImageFile loads an image from a file path.
func loadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: path comes from our own temp dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	return img, err
}

// collectExtractedImages walks the given directory and groups images by page
// number. Within a page, images keep file name order.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	result := make(map[int][]image.Image)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		pageNum, err := parsePageFromFilename(e.Name())
		if err != nil {
			continue
		}

		img, err := loadImageFile(filepath.Join(dir, e.Name()))
		if err != nil || img == nil {
			continue
		}
		result[pageNum] = append(result[pageNum], img)
	}
	return result, nil
}

// parsePageFromFilename extracts the page number from an extracted image name.
// Both page_<num>_image_<idx>.<ext> and pdfcpu's <base>_<num>_<id>.<ext> are
// understood.
func parsePageFromFilename(filename string) (int, error) {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(stem, "_")

	if parts[0] == "page" {
		if len(parts) < 2 {
			return 0, errors.New("invalid filename format")
		}
		pageNum, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, errors.New("invalid page number")
		}
		return pageNum, nil
	}

	if len(parts) < 3 {
		return 0, errors.New("not a page file")
	}
	pageNum, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil || pageNum < 0 {
		return 0, errors.New("invalid page number")
	}
	return pageNum, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if pageRange == "" {
		return nil, nil // Empty means all pages
	}

	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}

	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
