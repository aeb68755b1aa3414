package epd

import (
	"errors"
	"fmt"
	"image"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	cmdSoftwareReset         byte = 0x12
	cmdDriverOutputControl   byte = 0x01
	cmdDataEntryMode         byte = 0x11
	cmdTempSensorControl     byte = 0x18
	cmdSetRamXStartEndPos    byte = 0x44
	cmdSetRamYStartEndPos    byte = 0x45
	cmdSetRamXCounter        byte = 0x4E
	cmdSetRamYCounter        byte = 0x4F
	cmdBorderWaveformControl byte = 0x3C
	cmdDisplayUpdateControl1 byte = 0x21
	cmdDisplayUpdateControl2 byte = 0x22
	cmdWriteRAM              byte = 0x24
	cmdEnterDeepSleep        byte = 0x10

	dataEntryX                      byte = 0x03
	internalTempSensor              byte = 0x80
	displayUpdateSequence           byte = 0x20
	displayUpdateSequenceNormalMode byte = 0xF7
)

// Native panel geometry of the 2.7" module.
const (
	Width  = 176
	Height = 264
)

var ErrBusyTimeout = errors.New("timeout waiting for display to be ready")

type DisplayConfig struct {
	DCPin   string
	CSPin   string
	RSTPin  string
	BUSYPin string

	SPIFrequency physic.Frequency
	SPIMode      spi.Mode

	ResetHoldTime  time.Duration
	ResetDelayTime time.Duration
	BusyPollTime   time.Duration
	RefreshTimeout time.Duration

	OnBusyStateChange func(busy bool)
}

func DefaultConfig() DisplayConfig {
	return DisplayConfig{
		DCPin:   "GPIO25",
		CSPin:   "GPIO8",
		RSTPin:  "GPIO17",
		BUSYPin: "GPIO24",

		SPIFrequency: 4 * physic.MegaHertz,
		SPIMode:      spi.Mode0,

		ResetHoldTime:  20 * time.Millisecond,
		ResetDelayTime: 2 * time.Millisecond,
		BusyPollTime:   10 * time.Millisecond,
		RefreshTimeout: 15 * time.Second,

		OnBusyStateChange: nil,
	}
}

// Display drives the panel over SPI. New acquires the bus and pins; Init must
// be called before each refresh and Sleep after it.
type Display struct {
	port   spi.PortCloser
	conn   spi.Conn
	dc     gpio.PinOut
	cs     gpio.PinOut
	rst    gpio.PinOut
	busy   gpio.PinIn
	width  int
	height int
	config DisplayConfig
	closed bool
}

func New() (*Display, error) {
	return NewWithConfig(DefaultConfig())
}

func NewWithConfig(config DisplayConfig) (*Display, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init failed: %w", err)
	}

	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("SPI open failed: %w", err)
	}

	c, err := port.Connect(config.SPIFrequency, config.SPIMode, 8)
	if err != nil {
		if closeErr := port.Close(); closeErr != nil {
			return nil, fmt.Errorf("SPI connect failed and port close failed: %w", closeErr)
		}
		return nil, fmt.Errorf("SPI connect failed: %w", err)
	}

	dc := gpioreg.ByName(config.DCPin)
	cs := gpioreg.ByName(config.CSPin)
	rst := gpioreg.ByName(config.RSTPin)
	busy := gpioreg.ByName(config.BUSYPin)

	if dc == nil || cs == nil || rst == nil || busy == nil {
		if closeErr := port.Close(); closeErr != nil {
			return nil, fmt.Errorf("GPIO init failed and port close failed: %w", closeErr)
		}
		return nil, errors.New("failed to initialize GPIO pins")
	}

	if err := busy.In(gpio.Float, gpio.NoEdge); err != nil {
		if closeErr := port.Close(); closeErr != nil {
			return nil, fmt.Errorf("BUSY pin setup failed and port close failed: %w", closeErr)
		}
		return nil, fmt.Errorf("BUSY pin setup failed: %w", err)
	}

	return &Display{
		port:   port,
		conn:   c,
		dc:     dc,
		cs:     cs,
		rst:    rst,
		busy:   busy,
		width:  Width,
		height: Height,
		config: config,
	}, nil
}

func (d *Display) reset() error {
	if err := d.setPin(d.rst, gpio.High); err != nil {
		return err
	}
	time.Sleep(d.config.ResetHoldTime)

	if err := d.setPin(d.rst, gpio.Low); err != nil {
		return err
	}
	time.Sleep(d.config.ResetDelayTime)

	if err := d.setPin(d.rst, gpio.High); err != nil {
		return err
	}
	time.Sleep(d.config.ResetHoldTime)
	return nil
}

func (d *Display) waitBusy() error {
	if d.config.OnBusyStateChange != nil {
		d.config.OnBusyStateChange(true)
		defer d.config.OnBusyStateChange(false)
	}

	deadline := time.Now().Add(d.config.RefreshTimeout)
	for time.Now().Before(deadline) {
		if d.busy.Read() == gpio.Low {
			return nil
		}
		time.Sleep(d.config.BusyPollTime)
	}
	return ErrBusyTimeout
}

func (d *Display) sendDataBulk(data []byte) error {
	if err := d.setPin(d.dc, gpio.High); err != nil {
		return fmt.Errorf("DC pin set failed: %w", err)
	}
	if err := d.setPin(d.cs, gpio.Low); err != nil {
		return fmt.Errorf("CS pin set failed: %w", err)
	}
	// spidev caps a single transfer at the port's buffer size.
	maxTx := len(data)
	if l, ok := d.conn.(conn.Limits); ok && l.MaxTxSize() > 0 {
		maxTx = l.MaxTxSize()
	}
	for len(data) > 0 {
		n := min(maxTx, len(data))
		if err := d.conn.Tx(data[:n], nil); err != nil {
			return fmt.Errorf("bulk data transmission failed: %w", err)
		}
		data = data[n:]
	}
	return d.setPin(d.cs, gpio.High)
}

func (d *Display) setPin(pin gpio.PinOut, level gpio.Level) error {
	if err := pin.Out(level); err != nil {
		return fmt.Errorf("failed to set pin: %w", err)
	}
	return nil
}

// Init wakes the controller and programs it for a full-screen refresh. It is
// required after Sleep.
func (d *Display) Init() error {
	if d.closed {
		return errors.New("display closed")
	}
	if err := d.reset(); err != nil {
		return err
	}
	if err := d.waitBusy(); err != nil {
		return err
	}

	if err := d.sendCommand(cmdSoftwareReset); err != nil {
		return err
	}
	if err := d.waitBusy(); err != nil {
		return err
	}

	if err := d.setDriverOutputControl(); err != nil {
		return err
	}

	if err := d.setDataEntryMode(dataEntryX); err != nil {
		return err
	}

	if err := d.setWindow(0, 0, d.width-1, d.height-1); err != nil {
		return err
	}

	if err := d.setBorderWaveform(); err != nil {
		return err
	}

	if err := d.sendCommand(cmdDisplayUpdateControl1); err != nil {
		return err
	}
	if err := d.sendData(0x00); err != nil {
		return err
	}
	if err := d.sendData(0x80); err != nil {
		return err
	}

	if err := d.sendCommand(cmdTempSensorControl); err != nil {
		return err
	}
	if err := d.sendData(internalTempSensor); err != nil {
		return err
	}

	if err := d.setCursor(0, 0); err != nil {
		return err
	}

	return d.waitBusy()
}

// setDriverOutputControl sets the gate count to the panel height.
func (d *Display) setDriverOutputControl() error {
	gates := d.height - 1
	if err := d.sendCommand(cmdDriverOutputControl); err != nil {
		return err
	}
	if err := d.sendData(byte(gates & 0xFF)); err != nil {
		return err
	}
	if err := d.sendData(byte((gates >> 8) & 0xFF)); err != nil {
		return err
	}
	return d.sendData(0x00)
}

func (d *Display) setDataEntryMode(mode byte) error {
	if err := d.sendCommand(cmdDataEntryMode); err != nil {
		return err
	}
	return d.sendData(mode)
}

func (d *Display) setBorderWaveform() error {
	if err := d.sendCommand(cmdBorderWaveformControl); err != nil {
		return err
	}
	return d.sendData(0x05)
}

func (d *Display) setWindow(xStart, yStart, xEnd, yEnd int) error {
	if err := d.sendCommand(cmdSetRamXStartEndPos); err != nil {
		return err
	}
	if err := d.sendData(byte((xStart >> 3) & 0xFF)); err != nil {
		return err
	}
	if err := d.sendData(byte((xEnd >> 3) & 0xFF)); err != nil {
		return err
	}

	if err := d.sendCommand(cmdSetRamYStartEndPos); err != nil {
		return err
	}
	if err := d.sendData(byte(yStart & 0xFF)); err != nil {
		return err
	}
	if err := d.sendData(byte((yStart >> 8) & 0xFF)); err != nil {
		return err
	}
	if err := d.sendData(byte(yEnd & 0xFF)); err != nil {
		return err
	}
	return d.sendData(byte((yEnd >> 8) & 0xFF))
}

func (d *Display) setCursor(x, y int) error {
	if err := d.sendCommand(cmdSetRamXCounter); err != nil {
		return err
	}
	if err := d.sendData(byte((x >> 3) & 0xFF)); err != nil {
		return err
	}

	if err := d.sendCommand(cmdSetRamYCounter); err != nil {
		return err
	}
	if err := d.sendData(byte(y & 0xFF)); err != nil {
		return err
	}
	return d.sendData(byte((y >> 8) & 0xFF))
}

// Display writes img to the panel RAM and refreshes. img must be Width x
// Height, or Height x Width in which case it is rotated to portrait. The
// refresh blocks until the panel reports ready.
func (d *Display) Display(img image.Image) error {
	buf, err := packFrame(img, d.width, d.height)
	if err != nil {
		return err
	}
	return d.writeFrame(buf)
}

// Clear fills the panel with fill, one byte per eight pixels (0xFF white,
// 0x00 black), and refreshes.
func (d *Display) Clear(fill uint8) error {
	buf := make([]byte, frameSize(d.width, d.height))
	for i := range buf {
		buf[i] = fill
	}
	return d.writeFrame(buf)
}

func (d *Display) writeFrame(buf []byte) error {
	if err := d.setCursor(0, 0); err != nil {
		return err
	}
	if err := d.sendCommand(cmdWriteRAM); err != nil {
		return err
	}
	if err := d.sendDataBulk(buf); err != nil {
		return err
	}
	return d.update()
}

func (d *Display) update() error {
	if err := d.sendCommand(cmdDisplayUpdateControl2); err != nil {
		return err
	}
	if err := d.sendData(displayUpdateSequenceNormalMode); err != nil {
		return err
	}
	if err := d.sendCommand(displayUpdateSequence); err != nil {
		return err
	}
	return d.waitBusy()
}

// Sleep puts the controller into deep sleep. The panel keeps its image.
func (d *Display) Sleep() error {
	if err := d.sendCommand(cmdEnterDeepSleep); err != nil {
		return err
	}
	return d.sendData(0x01)
}

func (d *Display) Size() (int, int) {
	return d.width, d.height
}

// Close puts the panel to sleep and releases the SPI port. Further calls are
// no-ops.
func (d *Display) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	sleepErr := d.Sleep()
	if err := d.port.Close(); err != nil {
		return err
	}
	return sleepErr
}

func (d *Display) sendCommand(cmd byte) error {
	if err := d.setPin(d.dc, gpio.Low); err != nil {
		return err
	}
	if err := d.setPin(d.cs, gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	return d.setPin(d.cs, gpio.High)
}

func (d *Display) sendData(data byte) error {
	if err := d.setPin(d.dc, gpio.High); err != nil {
		return err
	}
	if err := d.setPin(d.cs, gpio.Low); err != nil {
		return err
	}
	if err := d.conn.Tx([]byte{data}, nil); err != nil {
		return err
	}
	return d.setPin(d.cs, gpio.High)
}
