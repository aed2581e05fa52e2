package writer

import (
	"fmt"
	"io"

	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/util"
	"github.com/batchatco/go-native-cdf/internal"
	"github.com/batchatco/go-native-cdf/internal/gzipblock"
	"github.com/batchatco/go-thrower"
)

// maxVXREntries is the number of data blocks one VXR indexes.
const maxVXREntries = 6

// LayoutPlan is a variable's records laid out from a fixed offset: its VDR,
// the CPR of a compressed variable, then each VXR followed by the blocks it
// indexes. Compressed blocks are compressed while planning, since their
// size is needed for every offset after them, and Emit writes those same
// bytes. The variable must not change between Plan and Emit.
type LayoutPlan struct {
	vdr    *record.VDR
	cpr    *record.CPR
	groups []*vxrGroup
	size   int64
}

type vxrGroup struct {
	vxr    *record.VXR
	blocks []blockPlan
}

// blockPlan is one VVR or CVVR.
type blockPlan struct {
	vvr  *record.VVR
	cvvr *record.CVVR
}

func (b blockPlan) offset() int64 {
	if b.cvvr != nil {
		return b.cvvr.Offset
	}
	return b.vvr.Offset
}

// Plan lays the variable out starting at offset.
func (v *Variable) Plan(offset int64) (plan *LayoutPlan, err error) {
	defer thrower.RecoverError(&err)
	ver := record.V3
	plan = &LayoutPlan{vdr: v.vdr()}
	off := offset
	plan.vdr.Offset = off
	off += plan.vdr.EncodedSize(ver)

	if v.spec.Compressed {
		plan.cpr = &record.CPR{
			Header: record.Header{Offset: off},
			CType:  record.GzipCompression,
			Parms:  []int32{int32(v.w.opts.level)},
		}
		plan.vdr.CPROffset = off
		off += plan.cpr.EncodedSize(ver)
	}

	segs := v.realSegments()
	for start := 0; start < len(segs); start += maxVXREntries {
		group := segs[start:min(start+maxVXREntries, len(segs))]
		g := &vxrGroup{vxr: &record.VXR{
			Header:   record.Header{Offset: off},
			NEntries: int32(len(group)),
		}}
		for _, s := range group {
			g.vxr.First = append(g.vxr.First, int32(s.first))
			g.vxr.Last = append(g.vxr.Last, int32(s.last))
		}
		// Filled in below; the size depends only on the count.
		g.vxr.Offsets = make([]int64, len(group))
		off += g.vxr.EncodedSize(ver)

		for i, s := range group {
			var b blockPlan
			if v.spec.Compressed {
				data, err := gzipblock.Deflate(s.data, v.w.opts.level)
				thrower.ThrowIfError(err)
				b.cvvr = &record.CVVR{Header: record.Header{Offset: off}, Data: data}
				off += b.cvvr.EncodedSize(ver)
			} else {
				b.vvr = &record.VVR{Header: record.Header{Offset: off}, Data: s.data}
				off += b.vvr.EncodedSize(ver)
			}
			g.vxr.Offsets[i] = b.offset()
			g.blocks = append(g.blocks, b)
		}
		plan.groups = append(plan.groups, g)
	}
	for i, g := range plan.groups {
		if i+1 < len(plan.groups) {
			g.vxr.Next = plan.groups[i+1].vxr.Offset
		}
	}
	if len(plan.groups) > 0 {
		plan.vdr.VXRHead = plan.groups[0].vxr.Offset
		plan.vdr.VXRTail = plan.groups[len(plan.groups)-1].vxr.Offset
	}
	plan.size = off - offset
	logger.With(internal.Fields{
		"variable": v.spec.Name,
		"offset":   offset,
		"size":     plan.size,
		"vxrs":     len(plan.groups),
		"blocks":   len(segs),
	}).Info("planned variable")
	return plan, nil
}

// Offset is where the VDR starts.
func (p *LayoutPlan) Offset() int64 {
	return p.vdr.Offset
}

// Size is the number of bytes Emit writes.
func (p *LayoutPlan) Size() int64 {
	return p.size
}

// Emit writes the planned records. nextVDR is the offset of the following
// variable, or 0 for the last one.
func (p *LayoutPlan) Emit(w io.Writer, nextVDR int64) (err error) {
	defer thrower.RecoverError(&err)
	ver := record.V3
	cw := util.NewCountedWriter(w)
	at := func(off int64) {
		got := p.vdr.Offset + cw.Count()
		assert(got == off, fmt.Sprint(p.vdr.Name, " record at ", got, ", planned ", off),
			fmt.Errorf("variable %q: record written at %d, planned at %d", p.vdr.Name, got, off))
	}
	p.vdr.Next = nextVDR
	thrower.ThrowIfError(p.vdr.Write(cw, ver))
	if p.cpr != nil {
		at(p.cpr.Offset)
		thrower.ThrowIfError(p.cpr.Write(cw, ver))
	}
	for _, g := range p.groups {
		at(g.vxr.Offset)
		thrower.ThrowIfError(g.vxr.Write(cw, ver))
		for _, b := range g.blocks {
			at(b.offset())
			if b.cvvr != nil {
				thrower.ThrowIfError(b.cvvr.Write(cw, ver))
			} else {
				thrower.ThrowIfError(b.vvr.Write(cw, ver))
			}
		}
	}
	at(p.vdr.Offset + p.size)
	return nil
}
