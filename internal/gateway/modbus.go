package gateway

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"codeberg.org/renedaq/hvmond/internal/crate"
	"codeberg.org/renedaq/hvmond/internal/errors"
	"codeberg.org/renedaq/hvmond/internal/logger"
	mb "github.com/goburrow/modbus"
)

const (
	defaultTimeout = 2 * time.Second

	// Scaled fixed-point encoding for float parameters: two registers
	// per channel, big-endian int32, hundredths of the unit.
	floatScale       = 100.0
	wordsPerFloat    = 2
	bytesPerRegister = 2
)

// block describes the input-register layout of one parameter on the
// crate gateway: a channel-indexed run starting at base.
type block struct {
	base  uint16
	words uint16
}

// Register map of the crate gateway firmware. Flags occupy one register
// per channel, measurements two.
var paramBlocks = map[string]block{
	crate.ParamPower:     {base: 0x0000, words: 1},
	crate.ParamPowerOn:   {base: 0x0040, words: 1},
	crate.ParamPowerDown: {base: 0x0080, words: 1},
	crate.ParamVMon:      {base: 0x0100, words: wordsPerFloat},
	crate.ParamIMon:      {base: 0x0200, words: wordsPerFloat},
	crate.ParamV0Set:     {base: 0x0300, words: wordsPerFloat},
	crate.ParamI0Set:     {base: 0x0400, words: wordsPerFloat},
}

// Config holds the Modbus/TCP connection settings for the crate gateway.
type Config struct {
	Address string
	Timeout time.Duration
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Address == "" {
		return errFactory.New(ErrInvalidAddress)
	}

	return nil
}

// modbusGateway talks Modbus/TCP to the crate: the slot number is the
// unit identifier, each parameter a fixed input-register block.
type modbusGateway struct {
	handler *mb.TCPClientHandler
	client  mb.Client
	mu      sync.Mutex
}

// Dial connects to the crate gateway and returns it behind the Gateway
// contract.
func Dial(cfg Config) (Gateway, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	handler := mb.NewTCPClientHandler(cfg.Address)
	handler.Timeout = timeout

	if err := handler.Connect(); err != nil {
		return nil, errFactory.WithData(ErrConnectFailed, struct {
			Address string
			Error   string
		}{
			Address: cfg.Address,
			Error:   err.Error(),
		})
	}

	logger.Info().
		Str("address", cfg.Address).
		Dur("timeout", timeout).
		Msg("Connected to crate gateway")

	return &modbusGateway{
		handler: handler,
		client:  mb.NewClient(handler),
	}, nil
}

func (g *modbusGateway) Read(ctx context.Context, slot int, channels []int, param crate.Parameter) ([]any, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return nil, errFactory.Wrap(ErrReadFailed, err)
	}

	if slot < 0 || slot > 255 {
		return nil, errFactory.WithData(ErrInvalidSlot, slot)
	}

	blk, ok := paramBlocks[param.Name]
	if !ok {
		return nil, errFactory.WithData(ErrUnknownParameter, param.Name)
	}

	maxChannel := 0
	for _, ch := range channels {
		if ch > maxChannel {
			maxChannel = ch
		}
	}
	quantity := uint16(maxChannel+1) * blk.words

	// The handler's unit id is shared state; reads are serialized.
	g.mu.Lock()
	g.handler.SlaveId = byte(slot)
	raw, err := g.client.ReadInputRegisters(blk.base, quantity)
	g.mu.Unlock()

	if err != nil {
		return nil, errFactory.WithData(ErrReadFailed, struct {
			Slot      int
			Parameter string
			Error     string
		}{
			Slot:      slot,
			Parameter: param.Name,
			Error:     err.Error(),
		})
	}

	if len(raw) < int(quantity)*bytesPerRegister {
		return nil, errFactory.WithData(ErrShortResponse, struct {
			Slot      int
			Parameter string
			Got       int
			Want      int
		}{
			Slot:      slot,
			Parameter: param.Name,
			Got:       len(raw),
			Want:      int(quantity) * bytesPerRegister,
		})
	}

	values := make([]any, len(channels))
	for i, ch := range channels {
		offset := ch * int(blk.words) * bytesPerRegister
		if blk.words == wordsPerFloat {
			scaled := int32(binary.BigEndian.Uint32(raw[offset : offset+4]))
			values[i] = float64(scaled) / floatScale
		} else {
			values[i] = int64(binary.BigEndian.Uint16(raw[offset : offset+2]))
		}
	}

	return values, nil
}

func (g *modbusGateway) Close() error {
	errFactory := errors.New()

	if err := g.handler.Close(); err != nil {
		return errFactory.Wrap(ErrCloseFailed, err)
	}

	return nil
}
