package display

import (
	"fmt"
	"image"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"agiledash/internal/config"
	"agiledash/internal/convert"
	appLog "agiledash/internal/log"
)

// ST7789 command set (subset).
const (
	cmdSWRESET = 0x01
	cmdSLPOUT  = 0x11
	cmdNORON   = 0x13
	cmdINVON   = 0x21
	cmdDISPOFF = 0x28
	cmdDISPON  = 0x29
	cmdCASET   = 0x2A
	cmdRASET   = 0x2B
	cmdRAMWR   = 0x2C
	cmdMADCTL  = 0x36
	cmdCOLMOD  = 0x3A

	colmod16bit = 0x05
	// MV|MX|RGB: landscape 320x240 with the connector on the left.
	madctlLandscape = 0x70

	// spidev rejects larger single transfers on many kernels.
	chunkSize = 4096
)

// txConn is the part of spi.Conn the driver uses.
type txConn interface {
	Tx(w, r []byte) error
}

// pinOut is the part of gpio.PinOut the driver uses.
type pinOut interface {
	Out(l gpio.Level) error
}

// ST7789 drives a 320x240 ST7789 LCD over SPI with a separate DC line.
type ST7789 struct {
	mu sync.Mutex

	conn   txConn
	closer interface{ Close() error }
	dc     pinOut
	bl     pinOut // optional
	rst    pinOut // optional

	width, height int
	rotation      int
	sleep         func(time.Duration)
}

// OpenST7789 initialises periph.io, opens the SPI port and GPIO lines, and
// runs the panel init sequence.
func OpenST7789(cfg config.DisplayConfig) (*ST7789, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("st7789: periph host init failed: %w", err)
	}

	// "" picks the first registered port, e.g. /dev/spidev0.0.
	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("st7789: failed to open SPI port %q: %w", cfg.SPIPort, err)
	}

	conn, err := port.Connect(physic.Frequency(cfg.SPISpeedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("st7789: failed to connect SPI: %w", err)
	}

	dc, err := gpioOut(cfg.DCPin, gpio.Low)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	if dc == nil {
		_ = port.Close()
		return nil, fmt.Errorf("st7789: dc_pin is required")
	}
	bl, err := gpioOut(cfg.BacklightPin, gpio.Low)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	rst, err := gpioOut(cfg.ResetPin, gpio.High)
	if err != nil {
		_ = port.Close()
		return nil, err
	}

	d := newST7789(conn, dc, bl, rst, cfg.Width, cfg.Height, cfg.Rotation)
	d.closer = port
	if err := d.init(); err != nil {
		_ = port.Close()
		return nil, err
	}
	appLog.Info("st7789 ready", "port", cfg.SPIPort, "hz", cfg.SPISpeedHz, "width", d.width, "height", d.height)
	return d, nil
}

// gpioOut resolves BCM pin n. A negative n returns (nil, nil).
func gpioOut(n int, initial gpio.Level) (pinOut, error) {
	if n < 0 {
		return nil, nil
	}
	name := fmt.Sprintf("GPIO%d", n)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("st7789: gpio %s not found", name)
	}
	if err := p.Out(initial); err != nil {
		return nil, fmt.Errorf("st7789: gpio %s Out failed: %w", name, err)
	}
	return p, nil
}

func newST7789(conn txConn, dc, bl, rst pinOut, width, height, rotation int) *ST7789 {
	if width <= 0 {
		width = 320
	}
	if height <= 0 {
		height = 240
	}
	return &ST7789{
		conn:     conn,
		dc:       dc,
		bl:       bl,
		rst:      rst,
		width:    width,
		height:   height,
		rotation: rotation,
		sleep:    time.Sleep,
	}
}

func (d *ST7789) init() error {
	if d.rst != nil {
		_ = d.rst.Out(gpio.High)
		d.sleep(10 * time.Millisecond)
		_ = d.rst.Out(gpio.Low)
		d.sleep(10 * time.Millisecond)
		_ = d.rst.Out(gpio.High)
		d.sleep(120 * time.Millisecond)
	}

	steps := []struct {
		cmd   byte
		data  []byte
		delay time.Duration
	}{
		{cmdSWRESET, nil, 150 * time.Millisecond},
		{cmdSLPOUT, nil, 120 * time.Millisecond},
		{cmdCOLMOD, []byte{colmod16bit}, 10 * time.Millisecond},
		{cmdMADCTL, []byte{madctlLandscape}, 0},
		{cmdINVON, nil, 10 * time.Millisecond},
		{cmdNORON, nil, 10 * time.Millisecond},
		{cmdDISPON, nil, 100 * time.Millisecond},
	}
	for _, s := range steps {
		if err := d.command(s.cmd, s.data...); err != nil {
			return fmt.Errorf("st7789: init command 0x%02X: %w", s.cmd, err)
		}
		if s.delay > 0 {
			d.sleep(s.delay)
		}
	}

	if d.bl != nil {
		_ = d.bl.Out(gpio.High)
	}
	return nil
}

// Present writes the whole frame to display RAM.
func (d *ST7789) Present(img *image.RGBA) error {
	if b := img.Bounds(); b.Dx() != d.width || b.Dy() != d.height {
		return fmt.Errorf("st7789: frame is %dx%d, panel is %dx%d", b.Dx(), b.Dy(), d.width, d.height)
	}
	frame, err := convert.Orient(img, d.rotation)
	if err != nil {
		return err
	}
	buf := convert.PackRGB565(frame)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.setWindow(0, 0, d.width-1, d.height-1); err != nil {
		return err
	}
	if err := d.command(cmdRAMWR); err != nil {
		return err
	}
	return d.data(buf)
}

func (d *ST7789) setWindow(x0, y0, x1, y1 int) error {
	if err := d.command(cmdCASET, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	return d.command(cmdRASET, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1))
}

// command sends cmd with DC low, then any parameter bytes with DC high.
func (d *ST7789) command(cmd byte, params ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("st7789: write command: %w", err)
	}
	if len(params) == 0 {
		return nil
	}
	return d.data(params)
}

func (d *ST7789) data(p []byte) error {
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(p) > 0 {
		n := min(len(p), chunkSize)
		if err := d.conn.Tx(p[:n], nil); err != nil {
			return fmt.Errorf("st7789: write data: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// Close turns the panel and backlight off and releases the SPI port.
func (d *ST7789) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.command(cmdDISPOFF); err != nil {
		appLog.Warn("st7789 display off failed", "err", err)
	}
	if d.bl != nil {
		_ = d.bl.Out(gpio.Low)
	}
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
