// Package pdf pulls raster plan images out of PDF documents so they can be
// measured like any other image input.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/plotmeter/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoImages is returned when a document carries no embedded raster images.
var ErrNoImages = errors.New("no embedded images found")

// ExtractImages extracts the embedded images of a PDF file, grouped by page.
// An empty pageRange selects every page.
func ExtractImages(filename, pageRange string) (map[int][]image.Image, error) {
	return ExtractImagesWithPassword(filename, pageRange, "")
}

// ExtractImagesWithPassword is ExtractImages for documents protected by a
// user password.
func ExtractImagesWithPassword(filename, pageRange, password string) (map[int][]image.Image, error) {
	pages, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "plotmeter-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selected []string
	for _, p := range pages {
		selected = append(selected, strconv.Itoa(p))
	}

	if err := api.ExtractImagesFile(filename, tempDir, selected, configFor(password)); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	result, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return result, nil
}

func configFor(password string) *model.Configuration {
	if password == "" {
		return nil
	}
	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password
	return conf
}

// LargestImage picks the image with the most pixels across all pages.
// Ties go to the lowest page number, then to the first image on that page.
func LargestImage(pages map[int][]image.Image) (image.Image, int, error) {
	nums := make([]int, 0, len(pages))
	for p := range pages {
		nums = append(nums, p)
	}
	sort.Ints(nums)

	var (
		best     image.Image
		bestPage int
		bestArea = -1
	)
	for _, p := range nums {
		for _, img := range pages[p] {
			if img == nil {
				continue
			}
			b := img.Bounds()
			if a := b.Dx() * b.Dy(); a > bestArea {
				best, bestPage, bestArea = img, p, a
			}
		}
	}
	if best == nil {
		return nil, 0, ErrNoImages
	}
	return best, bestPage, nil
}

// LoadPlan extracts the largest embedded image from the selected pages.
func LoadPlan(filename, pageRange, password string) (image.Image, int, error) {
	pages, err := ExtractImagesWithPassword(filename, pageRange, password)
	if err != nil {
		return nil, 0, err
	}
	img, page, err := LargestImage(pages)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", filename, err)
	}
	return img, page, nil
}

// IsPDF reports whether the path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// collectExtractedImages groups images written by pdfcpu under
// page_<num>_image_<idx>.<ext> names. Files that do not follow the naming
// scheme or fail to decode are skipped.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	result := make(map[int][]image.Image)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		page, err := parsePageFromFilename(e.Name())
		if err != nil {
			continue
		}
		img, _, err := utils.LoadImage(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		result[page] = append(result[page], img)
	}
	return result, nil
}

func parsePageFromFilename(filename string) (int, error) {
	if !strings.HasPrefix(filename, "page_") {
		return 0, errors.New("not a page file")
	}
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return 0, errors.New("invalid filename format")
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.New("invalid page number")
	}
	return page, nil
}

// parsePageRange parses "1-5", "1,3,5" or a mix. Empty means all pages.
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
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

func parseRangeToken(part string) ([]int, error) {
	if !strings.Contains(part, "-") {
		page, err := strconv.Atoi(part)
		if err != nil || page < 1 {
			return nil, fmt.Errorf("invalid page number: %s", part)
		}
		return []int{page}, nil
	}

	bounds := strings.Split(part, "-")
	if len(bounds) != 2 {
		return nil, fmt.Errorf("invalid range format: %s", part)
	}
	start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
	if err != nil || start < 1 {
		return nil, fmt.Errorf("invalid start page: %s", bounds[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid end page: %s", bounds[1])
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
