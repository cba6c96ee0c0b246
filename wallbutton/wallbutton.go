// Package wallbutton is the bus application of an illuminated wall button.
//
// The button's RGB light shows an idle color, or an active color while the
// button is armed. Pressing it disarms the button and, when enabled,
// broadcasts a TRIGD notification carrying the node address.
package wallbutton

import (
	"errors"
	"sync/atomic"

	"busnode/core"
	"busnode/protocol"
)

// PWMPeriodNS is the PWM period used for the indicator channels (1kHz)
const PWMPeriodNS = 1000000

var (
	errMissingArg = errors.New("missing argument")
	errBadArg     = errors.New("malformed argument")
	errBroadcast  = errors.New("address 0 is reserved for broadcast")
)

// Color is an 8-bit RGB color
type Color struct {
	R, G, B uint8
}

// Pins describes the button's hardware. Button and Prog are active low.
type Pins struct {
	Red    core.PWMPin
	Green  core.PWMPin
	Blue   core.PWMPin
	Button core.GPIOPin
	Prog   core.GPIOPin
}

// Config wires the application to a node
type Config struct {
	Node *core.Node
	Pins Pins

	// SetBaud reconfigures the bus UART. Called with the line held, after
	// the clock calibration factor changed.
	SetBaud func(baud uint32) error
}

// App is the wall button application. Command handlers and Task run in the
// main loop; ButtonPressed may be called from interrupt context.
type App struct {
	node     *core.Node
	registry *core.CommandRegistry
	pins     Pins
	setBaud  func(baud uint32) error

	idle   Color
	active Color

	armed    uint32 // atomic bool
	announce uint32 // atomic uint8, echoed back as set
	pending  uint32 // atomic bool, set by the button interrupt
}

// New configures the button hardware, registers the application commands
// and installs the command registry as the node's frame handler
func New(cfg Config) (*App, error) {
	if cfg.Node == nil {
		return nil, errors.New("wallbutton: node is required")
	}

	a := &App{
		node:     cfg.Node,
		registry: core.NewCommandRegistry(cfg.Node.Replier()),
		pins:     cfg.Pins,
		setBaud:  cfg.SetBaud,
	}

	pwm := core.MustPWM()
	for _, pin := range []core.PWMPin{a.pins.Red, a.pins.Green, a.pins.Blue} {
		if err := pwm.ConfigureHardwarePWM(pin, PWMPeriodNS); err != nil {
			return nil, err
		}
	}
	gpio := core.MustGPIO()
	if err := gpio.ConfigureInputPullUp(a.pins.Button); err != nil {
		return nil, err
	}
	if err := gpio.ConfigureInputPullUp(a.pins.Prog); err != nil {
		return nil, err
	}

	a.register()
	cfg.Node.SetHandler(a.registry)
	a.showColor(a.idle)
	return a, nil
}

// Registry returns the command registry, so targets can add commands
func (a *App) Registry() *core.CommandRegistry {
	return a.registry
}

func (a *App) register() {
	r := a.registry
	core.RegisterCoreCommands(r, a.node)

	r.Register("WHAT?", a.cmdWhat)
	r.RegisterGuarded("SETADDR", a.ProgMode, a.cmdSetAddr)

	r.Register("CLKCAL?", a.cmdClockCal)
	r.Register("SETCLKCAL", a.cmdSetClockCal)
	r.Register("CLKCAL+", a.cmdClockCalStep(1))
	r.Register("CLKCAL-", a.cmdClockCalStep(-1))

	r.Register("WBIDLCOLOR", a.cmdSetIdleColor)
	r.Register("WBIDLCOLOR?", a.cmdColorQuery("WBIDLCOLOR ", &a.idle))
	r.Register("WBACTCOLOR", a.cmdSetActiveColor)
	r.Register("WBACTCOLOR?", a.cmdColorQuery("WBACTCOLOR ", &a.active))
	r.Register("WBARM", a.cmdArm)
	r.Register("WBARM?", a.cmdArmed)
	r.Register("ANNCPRESS", a.cmdSetAnnounce)
	r.Register("ANNCPRESS?", a.cmdAnnounce)
	r.Register("PRESSED?", a.cmdPressed)
}

// ButtonPressed records a button press. Safe to call from the pin interrupt.
func (a *App) ButtonPressed() {
	atomic.StoreUint32(&a.pending, 1)
}

// Task handles a recorded button press. Call it from the main loop.
func (a *App) Task() {
	if !atomic.CompareAndSwapUint32(&a.pending, 1, 0) {
		return
	}

	if atomic.LoadUint32(&a.announce) != 0 {
		err := a.node.Replier().Begin(protocol.BroadcastAddr).
			Text("TRIGD ").Text(a.node.AddrString()).End()
		if err != nil {
			core.RecordEvent(core.EvtReplyError, protocol.BroadcastAddr, 0)
		} else {
			core.RecordEvent(core.EvtNotify, protocol.BroadcastAddr, 0)
		}
	}

	if atomic.CompareAndSwapUint32(&a.armed, 1, 0) {
		a.showColor(a.idle)
	}
}

// Armed reports whether the button shows its active color
func (a *App) Armed() bool {
	return atomic.LoadUint32(&a.armed) != 0
}

// Pressed reports whether the button is held down
func (a *App) Pressed() bool {
	return !core.MustGPIO().ReadPin(a.pins.Button)
}

// ProgMode reports whether the programming jumper is fitted
func (a *App) ProgMode() bool {
	return !core.MustGPIO().ReadPin(a.pins.Prog)
}

// IdleColor returns the color shown while disarmed
func (a *App) IdleColor() Color {
	return a.idle
}

// ActiveColor returns the color shown while armed
func (a *App) ActiveColor() Color {
	return a.active
}

func (a *App) showColor(c Color) {
	pwm := core.MustPWM()
	max := pwm.GetMaxValue()
	scale := func(v uint8) core.PWMValue {
		return core.PWMValue(uint32(v) * max / 255)
	}
	_ = pwm.SetDutyCycle(a.pins.Red, scale(c.R))
	_ = pwm.SetDutyCycle(a.pins.Green, scale(c.G))
	_ = pwm.SetDutyCycle(a.pins.Blue, scale(c.B))
}

// ok acknowledges a set-command. Broadcasts are never acknowledged.
func (a *App) ok(f *protocol.Frame) error {
	if f.IsBroadcast() {
		return nil
	}
	return a.node.Replier().Reply("OK")
}

func (a *App) cmdWhat(f *protocol.Frame) error {
	return a.node.Replier().AddrReply(a.node.OwnAddress(), "WALLBUTTON")
}

func (a *App) cmdSetAddr(f *protocol.Frame) error {
	addr, err := argUint8(f, 0)
	if err != nil {
		return err
	}
	if addr == protocol.BroadcastAddr {
		return errBroadcast
	}
	if err := a.node.SetOwnAddress(addr, true); err != nil {
		return err
	}
	return a.node.Replier().AddrReply(a.node.OwnAddress(), "ADDRSET OK")
}

func (a *App) cmdClockCal(f *protocol.Frame) error {
	return a.replyClockCal()
}

func (a *App) cmdSetClockCal(f *protocol.Frame) error {
	s := f.Arg(0)
	if s == "" {
		return errMissingArg
	}
	cal, n, err := protocol.ParseInt8(s)
	if err != nil {
		return err
	}
	if n != len(s) {
		return errBadArg
	}
	return a.applyClockCal(cal)
}

func (a *App) cmdClockCalStep(step int8) core.CommandHandler {
	return func(f *protocol.Frame) error {
		cal := int(a.node.Store().ClockCal()) + int(step)
		if cal > 127 || cal < -128 {
			// Already at the end of the range
			return a.replyClockCal()
		}
		return a.applyClockCal(int8(cal))
	}
}

func (a *App) applyClockCal(cal int8) error {
	if err := a.node.Store().SetClockCal(cal); err != nil {
		return err
	}
	if a.setBaud != nil {
		baud := core.CalibratedBaud(core.BusBaudRate, cal)
		// Wait for the line to go quiet before touching the UART
		err := a.node.Transport().Send(func(*protocol.TxScope) error {
			return a.setBaud(baud)
		})
		if err != nil {
			return err
		}
	}
	return a.replyClockCal()
}

func (a *App) replyClockCal() error {
	return a.node.Replier().ReplyStart().
		Text("CLKCAL ").Int8(a.node.Store().ClockCal()).End()
}

func (a *App) cmdSetIdleColor(f *protocol.Frame) error {
	c, err := argColor(f)
	if err != nil {
		return err
	}
	a.idle = c
	if !a.Armed() {
		a.showColor(c)
	}
	return a.ok(f)
}

func (a *App) cmdSetActiveColor(f *protocol.Frame) error {
	c, err := argColor(f)
	if err != nil {
		return err
	}
	a.active = c
	if a.Armed() {
		a.showColor(c)
	}
	return a.ok(f)
}

func (a *App) cmdColorQuery(prefix string, c *Color) core.CommandHandler {
	return func(f *protocol.Frame) error {
		return a.node.Replier().ReplyStart().Text(prefix).
			Uint8(c.R).Char(' ').Uint8(c.G).Char(' ').Uint8(c.B).End()
	}
}

func (a *App) cmdArm(f *protocol.Frame) error {
	a.showColor(a.active)
	atomic.StoreUint32(&a.armed, 1)
	return a.ok(f)
}

func (a *App) cmdArmed(f *protocol.Frame) error {
	return a.node.Replier().ReplyStart().Text("WBARM ").Char(boolChar(a.Armed())).End()
}

func (a *App) cmdSetAnnounce(f *protocol.Frame) error {
	v, err := argUint8(f, 0)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&a.announce, uint32(v))
	return a.ok(f)
}

func (a *App) cmdAnnounce(f *protocol.Frame) error {
	v := uint8(atomic.LoadUint32(&a.announce))
	return a.node.Replier().ReplyStart().Text("ANNCPRESS ").Uint8(v).End()
}

func (a *App) cmdPressed(f *protocol.Frame) error {
	return a.node.Replier().ReplyStart().Text("PRESSED ").Char(boolChar(a.Pressed())).End()
}

func boolChar(b bool) byte {
	if b {
		return '1'
	}
	return '0'
}

// argUint8 parses argument i as a whole decimal 0-255
func argUint8(f *protocol.Frame, i int) (uint8, error) {
	s := f.Arg(i)
	if s == "" {
		return 0, errMissingArg
	}
	v, n, err := protocol.ParseUint8(s)
	if err != nil {
		return 0, err
	}
	if n != len(s) {
		return 0, errBadArg
	}
	return v, nil
}

func argColor(f *protocol.Frame) (Color, error) {
	var rgb [3]uint8
	for i := range rgb {
		v, err := argUint8(f, i)
		if err != nil {
			return Color{}, err
		}
		rgb[i] = v
	}
	return Color{R: rgb[0], G: rgb[1], B: rgb[2]}, nil
}
