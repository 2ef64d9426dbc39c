package master

import (
	"context"
	"log/slog"

	"github.com/mklimuk/twowire/busctx"
	"github.com/mklimuk/twowire/regs"
)

// tracer logs every register access of a verbose transaction.
type tracer struct {
	file regs.File
	log  *slog.Logger
}

func (t *tracer) Load(r regs.Register) uint16 {
	v := t.file.Load(r)
	t.log.Debug("load", "reg", r.String(), "value", regs.Flags(r, v))
	return v
}

func (t *tracer) Store(r regs.Register, v uint16) {
	t.log.Debug("store", "reg", r.String(), "value", regs.Flags(r, v))
	t.file.Store(r, v)
}

// begin selects the register file for the transaction about to run; the
// caller holds the lock.
func (m *Master) begin(ctx context.Context) {
	if busctx.IsVerbose(ctx) {
		m.bus = &tracer{file: m.regs, log: m.log}
		return
	}
	m.bus = m.regs
}

func (m *Master) end() {
	m.bus = m.regs
}
