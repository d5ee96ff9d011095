package wasitls

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wasmgate/wazero-tls/tlsapi"
	"github.com/wasmgate/wazero-tls/tlsresult"
)

// paramsHeaderSize is the fixed part of the marshaled verification
// parameters: eight little-endian u32 fields.
//
//	0  end-entity ptr
//	4  end-entity len
//	8  intermediates list ptr (pairs of ptr, len)
//	12 intermediates count
//	16 dns-name ptr
//	20 dns-name len
//	24 ocsp ptr
//	28 ocsp len
const paramsHeaderSize = 32

// newGuestVerifier resolves a guest export by name and wraps it as a
// verifier callback. The guest function receives (userdata u32,
// params-ptr u32) and returns a result code; the parameters live in a
// single guest allocation that is freed when the call returns.
func (m *Module) newGuestVerifier(mod api.Module, exportName string) (tlsapi.VerifyCallback, error) {
	fn := mod.ExportedFunction(exportName)
	if fn == nil {
		return nil, fmt.Errorf("module %q does not export %q", mod.Name(), exportName)
	}
	alloc, err := newGuestAllocator(mod)
	if err != nil {
		return nil, err
	}
	v := &guestVerifier{module: m, mod: mod, fn: fn, alloc: alloc}
	return v.verify, nil
}

type guestVerifier struct {
	module *Module
	mod    api.Module
	fn     api.Function
	alloc  *guestAllocator
}

// verify runs on the connection's handshake goroutine. The guest call
// is serialized through the module lock because a wazero module must
// not be entered concurrently.
func (v *guestVerifier) verify(userdata any, params *tlsapi.VerifyParams) uint32 {
	v.module.guestMu.Lock()
	defer v.module.guestMu.Unlock()

	ctx := context.Background()

	size := paramsSize(params)
	ptr, err := v.alloc.allocate(ctx, size, 4)
	if err != nil {
		v.module.log.Warn("guest verifier allocation failed", zap.Error(err))
		return uint32(tlsresult.General)
	}
	defer func() {
		if err := v.alloc.free(ctx, ptr, size, 4); err != nil {
			v.module.log.Warn("guest verifier free failed", zap.Error(err))
		}
	}()

	if !v.mod.Memory().Write(ptr, marshalParams(ptr, params)) {
		return uint32(tlsresult.General)
	}

	ud, _ := userdata.(uint32)
	res, err := v.fn.Call(ctx, uint64(ud), uint64(ptr))
	if err != nil || len(res) != 1 {
		v.module.log.Warn("guest verifier call failed", zap.Error(err))
		return uint32(tlsresult.General)
	}
	return uint32(res[0])
}

func paramsSize(p *tlsapi.VerifyParams) uint32 {
	size := uint32(paramsHeaderSize)
	size += uint32(len(p.IntermediateCertsDER)) * 8
	size += uint32(len(p.EndEntityCertDER))
	for _, der := range p.IntermediateCertsDER {
		size += uint32(len(der))
	}
	size += uint32(len(p.DNSName))
	size += uint32(len(p.OCSPResponse))
	return size
}

// marshalParams lays the parameters out in one block: the header, the
// intermediates pair list, then the raw byte payloads. All pointers in
// the block are absolute guest addresses computed from base.
func marshalParams(base uint32, p *tlsapi.VerifyParams) []byte {
	buf := make([]byte, paramsSize(p))
	le := binary.LittleEndian

	pairBase := uint32(paramsHeaderSize)
	payload := pairBase + uint32(len(p.IntermediateCertsDER))*8

	writeField := func(off uint32, data []byte) {
		if len(data) == 0 {
			le.PutUint32(buf[off:], 0)
			le.PutUint32(buf[off+4:], 0)
			return
		}
		le.PutUint32(buf[off:], base+payload)
		le.PutUint32(buf[off+4:], uint32(len(data)))
		copy(buf[payload:], data)
		payload += uint32(len(data))
	}

	writeField(0, p.EndEntityCertDER)
	if len(p.IntermediateCertsDER) == 0 {
		le.PutUint32(buf[8:], 0)
	} else {
		le.PutUint32(buf[8:], base+pairBase)
	}
	le.PutUint32(buf[12:], uint32(len(p.IntermediateCertsDER)))
	writeField(16, []byte(p.DNSName))
	writeField(24, p.OCSPResponse)
	for i, der := range p.IntermediateCertsDER {
		writeField(pairBase+uint32(i)*8, der)
	}
	return buf
}
