package znle

import (
	"context"
	"fmt"
	"sort"
)

// Display manages the analyzer's display windows.
type Display struct {
	vna     *ZNLE
	windows map[int]*Window
}

func newDisplay(z *ZNLE) *Display {
	return &Display{vna: z, windows: make(map[int]*Window)}
}

func (d *Display) discover(ctx context.Context) error {
	catalog, err := d.WindowCatalog(ctx)
	if err != nil {
		return err
	}
	for num := range catalog {
		d.windows[num] = &Window{display: d, num: num}
	}
	return nil
}

// WindowCatalog queries the instrument's display window catalog.
func (d *Display) WindowCatalog(ctx context.Context) (map[int]string, error) {
	reply, err := d.vna.Ask(ctx, "disp:wind:cat?")
	if err != nil {
		return nil, err
	}
	return parseCatalog(reply)
}

// Window returns the known window with the given number.
func (d *Display) Window(num int) (*Window, bool) {
	w, ok := d.windows[num]
	return w, ok
}

// CreateWindow enables a display window. With num <= 0 the next free
// number is used.
func (d *Display) CreateWindow(ctx context.Context, num int) (*Window, error) {
	if num <= 0 {
		num = 1
		for n := range d.windows {
			if n >= num {
				num = n + 1
			}
		}
	}
	if err := d.vna.Write(fmt.Sprintf("disp:wind%d:stat on", num)); err != nil {
		return nil, err
	}
	w := &Window{display: d, num: num}
	d.windows[num] = w
	return w, nil
}

// AddTraceToNewWindow creates a window and feeds the trace to it.
func (d *Display) AddTraceToNewWindow(ctx context.Context, trace *Trace) (*Window, error) {
	w, err := d.CreateWindow(ctx, 0)
	if err != nil {
		return nil, err
	}
	if err := w.AddTrace(ctx, trace); err != nil {
		return nil, err
	}
	return w, nil
}

// AutoscaleAll autoscales every known window.
func (d *Display) AutoscaleAll(ctx context.Context) error {
	nums := make([]int, 0, len(d.windows))
	for num := range d.windows {
		nums = append(nums, num)
	}
	sort.Ints(nums)
	for _, num := range nums {
		if err := d.windows[num].Autoscale(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Window is one display window on the analyzer.
type Window struct {
	display *Display
	num     int
}

func (w *Window) Number() int { return w.num }

// AddTrace feeds a trace into this window.
func (w *Window) AddTrace(ctx context.Context, trace *Trace) error {
	return w.display.vna.Write(fmt.Sprintf("disp:wind%d:trac:efe \"%s\"", w.num, trace.TraceName()))
}

// Autoscale rescales the window's Y axis once.
func (w *Window) Autoscale(ctx context.Context) error {
	return w.display.vna.Write(fmt.Sprintf("disp:wind%d:trac:y:auto once", w.num))
}
