package paperjet

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// neutralTarget is the blank page sessions are parked on between uses.
const neutralTarget = "about:blank"

// Compile-time interface checks.
var (
	_ Engine  = (*rodEngine)(nil)
	_ Conn    = (*rodConn)(nil)
	_ Session = (*rodSession)(nil)
)

// rodEngine implements Engine on top of go-rod, speaking the DevTools
// protocol to a remote browser over its websocket control URL.
type rodEngine struct{}

// NewRodEngine returns the production Engine implementation.
func NewRodEngine() Engine {
	return &rodEngine{}
}

func (e *rodEngine) Connect(ctx context.Context, addr string) (Conn, error) {
	browser := rod.New().ControlURL(addr)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineConnect, err)
	}

	return &rodConn{browser: browser}, nil
}

// rodConn wraps one live browser connection.
type rodConn struct {
	browser *rod.Browser

	mu              sync.Mutex
	onDisconnect    func()
	onSessionClosed func(string)
	watching        bool
}

func (c *rodConn) OnDisconnect(fn func()) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
	c.watch()
}

func (c *rodConn) OnSessionClosed(fn func(string)) {
	c.mu.Lock()
	c.onSessionClosed = fn
	c.mu.Unlock()
	c.watch()
}

// watch consumes target lifecycle events from the browser's event stream.
// The stream ends when the websocket drops, which doubles as disconnect
// detection.
func (c *rodConn) watch() {
	c.mu.Lock()
	if c.watching {
		c.mu.Unlock()
		return
	}
	c.watching = true
	c.mu.Unlock()

	go func() {
		c.browser.EachEvent(
			func(e *proto.TargetTargetDestroyed) {
				c.notifySessionClosed(string(e.TargetID))
			},
			func(e *proto.TargetTargetCrashed) {
				c.notifySessionClosed(string(e.TargetID))
			},
		)()

		c.mu.Lock()
		fn := c.onDisconnect
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	}()
}

func (c *rodConn) notifySessionClosed(id string) {
	c.mu.Lock()
	fn := c.onSessionClosed
	c.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

func (c *rodConn) NewSession(ctx context.Context) (Session, error) {
	page, err := c.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: neutralTarget})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}

	return &rodSession{page: page.Context(context.Background())}, nil
}

func (c *rodConn) Close() error {
	return c.browser.Close()
}

// rodSession is one browser page reused across renders.
type rodSession struct {
	page *rod.Page
}

func (s *rodSession) ID() string {
	return string(s.page.TargetID)
}

// Navigate loads url and waits for the page load event, bounded by timeout.
func (s *rodSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	page := s.page.Context(ctx).Timeout(timeout)

	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("%w: %v", ErrNavigation, err)
	}
	return nil
}

func (s *rodSession) Render(ctx context.Context, opts *RenderOptions) ([]byte, error) {
	reader, err := s.page.Context(ctx).PDF(buildPrintOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}

	pdf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: reading PDF stream: %v", ErrRender, err)
	}
	return pdf, nil
}

// Reset parks the session back on the neutral page so it can be reused.
func (s *rodSession) Reset(ctx context.Context) error {
	if err := s.page.Context(ctx).Navigate(neutralTarget); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionFailed, err)
	}
	return nil
}

func (s *rodSession) Close() error {
	return s.page.Close()
}

// buildPrintOptions maps RenderOptions onto the engine's print-to-PDF call.
func buildPrintOptions(opts *RenderOptions) *proto.PagePrintToPDF {
	if opts == nil {
		opts = DefaultRenderOptions()
	}

	width, height := paperDimensions(opts.PageSize, opts.Orientation)

	margin := opts.Margin
	if opts.PageSize == "" && margin == 0 {
		// Zero-value options mean defaults, not borderless pages.
		margin = DefaultMargin
	}

	printBackground := true
	if opts.PrintBackground != nil {
		printBackground = *opts.PrintBackground
	}

	pdfOpts := &proto.PagePrintToPDF{
		PaperWidth:      floatPtr(width),
		PaperHeight:     floatPtr(height),
		MarginTop:       floatPtr(margin),
		MarginBottom:    floatPtr(margin),
		MarginLeft:      floatPtr(margin),
		MarginRight:     floatPtr(margin),
		PrintBackground: printBackground,
	}

	if opts.Scale != 0 {
		pdfOpts.Scale = floatPtr(opts.Scale)
	}

	if opts.HeaderTemplate != "" || opts.FooterTemplate != "" {
		pdfOpts.DisplayHeaderFooter = true
		pdfOpts.HeaderTemplate = opts.HeaderTemplate
		pdfOpts.FooterTemplate = opts.FooterTemplate
		if pdfOpts.HeaderTemplate == "" {
			pdfOpts.HeaderTemplate = "<span></span>"
		}
		if pdfOpts.FooterTemplate == "" {
			pdfOpts.FooterTemplate = "<span></span>"
		}
	}

	return pdfOpts
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
