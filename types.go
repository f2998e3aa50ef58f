package paperjet

import (
	"fmt"
	"strings"
)

// Page size constants.
const (
	PageSizeLetter = "letter"
	PageSizeA4     = "a4"
	PageSizeLegal  = "legal"
)

// Orientation constants.
const (
	OrientationPortrait  = "portrait"
	OrientationLandscape = "landscape"
)

// Margin bounds in inches.
const (
	MinMargin     = 0.0
	MaxMargin     = 3.0
	DefaultMargin = 0.5
)

// Scale bounds, per the engine's print-to-PDF contract.
const (
	MinScale = 0.1
	MaxScale = 2.0
)

// RenderOptions configures a single PDF render. The zero value (or nil)
// means defaults: US Letter, portrait, 0.5 inch margins, backgrounds printed,
// no header or footer.
type RenderOptions struct {
	PageSize        string  `json:"pageSize,omitempty"`    // "letter", "a4", "legal"
	Orientation     string  `json:"orientation,omitempty"` // "portrait", "landscape"
	Margin          float64 `json:"margin,omitempty"`      // inches, applied to all sides
	Scale           float64 `json:"scale,omitempty"`       // 0 = 1.0
	PrintBackground *bool   `json:"printBackground,omitempty"`
	HeaderTemplate  string  `json:"headerTemplate,omitempty"`
	FooterTemplate  string  `json:"footerTemplate,omitempty"`
}

// DefaultRenderOptions returns render options with default values.
func DefaultRenderOptions() *RenderOptions {
	return &RenderOptions{
		PageSize:    PageSizeLetter,
		Orientation: OrientationPortrait,
		Margin:      DefaultMargin,
	}
}

// Validate checks that render options are valid.
// Returns nil if o is nil (nil means use defaults).
// Does not mutate - uses case-insensitive comparison.
func (o *RenderOptions) Validate() error {
	if o == nil {
		return nil
	}

	if o.PageSize != "" && !isValidPageSize(o.PageSize) {
		return fmt.Errorf("%w: %q", ErrInvalidPageSize, o.PageSize)
	}

	if o.Orientation != "" && !isValidOrientation(o.Orientation) {
		return fmt.Errorf("%w: %q", ErrInvalidOrientation, o.Orientation)
	}

	if o.Margin < MinMargin || o.Margin > MaxMargin {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidMargin, o.Margin, MinMargin, MaxMargin)
	}

	if o.Scale != 0 && (o.Scale < MinScale || o.Scale > MaxScale) {
		return fmt.Errorf("%w: %.2f (must be between %.2f and %.2f)", ErrInvalidScale, o.Scale, MinScale, MaxScale)
	}

	return nil
}

// isValidPageSize checks if size is a known page size (case-insensitive).
func isValidPageSize(size string) bool {
	switch strings.ToLower(size) {
	case PageSizeLetter, PageSizeA4, PageSizeLegal:
		return true
	}
	return false
}

// isValidOrientation checks if orientation is valid (case-insensitive).
func isValidOrientation(orientation string) bool {
	switch strings.ToLower(orientation) {
	case OrientationPortrait, OrientationLandscape:
		return true
	}
	return false
}

// Paper dimensions in inches, portrait orientation.
var paperSizes = map[string][2]float64{
	PageSizeLetter: {8.5, 11},
	PageSizeA4:     {8.27, 11.69},
	PageSizeLegal:  {8.5, 14},
}

// paperDimensions returns width and height in inches for the given size and
// orientation, defaulting to US Letter portrait for unknown values.
func paperDimensions(size, orientation string) (width, height float64) {
	dims, ok := paperSizes[strings.ToLower(size)]
	if !ok {
		dims = paperSizes[PageSizeLetter]
	}

	width, height = dims[0], dims[1]
	if strings.ToLower(orientation) == OrientationLandscape {
		width, height = height, width
	}
	return width, height
}
