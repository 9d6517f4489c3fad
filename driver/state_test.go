package driver

import "testing"

func TestResourceStateValid(t *testing.T) {
	tests := []struct {
		name  string
		state ResourceState
		want  bool
	}{
		{"common", StateCommon, true},
		{"single read", StatePixelShaderResource, true},
		{"combined reads", StateShaderResource | StateCopySource, true},
		{"generic read", StateGenericRead, true},
		{"depth read with srv", StateDepthRead | StatePixelShaderResource, true},
		{"single write", StateRenderTarget, true},
		{"two writes", StateRenderTarget | StateUnorderedAccess, false},
		{"write with read", StateCopyDest | StateCopySource, false},
		{"unknown bit", ResourceState(0x100000), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Valid(); got != tt.want {
				t.Errorf("%v.Valid() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestResourceStateString(t *testing.T) {
	tests := []struct {
		state ResourceState
		want  string
	}{
		{StateCommon, "Common"},
		{StatePresent, "Common"},
		{StateRenderTarget, "RenderTarget"},
		{StateShaderResource, "NonPixelShaderResource|PixelShaderResource"},
		{StateCopySource | ResourceState(0x100000), "CopySource|0x100000"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("ResourceState(0x%x).String() = %q, want %q", uint32(tt.state), got, tt.want)
		}
	}
}

func TestResourceStateIsWrite(t *testing.T) {
	for _, s := range []ResourceState{StateRenderTarget, StateUnorderedAccess, StateDepthWrite, StateCopyDest} {
		if !s.IsWrite() {
			t.Errorf("%v.IsWrite() = false, want true", s)
		}
		if s.IsRead() {
			t.Errorf("%v.IsRead() = true, want false", s)
		}
	}
	for _, s := range []ResourceState{StateDepthRead, StateGenericRead, StateIndexBuffer} {
		if s.IsWrite() {
			t.Errorf("%v.IsWrite() = true, want false", s)
		}
		if !s.IsRead() {
			t.Errorf("%v.IsRead() = false, want true", s)
		}
	}
	if StateCommon.IsRead() {
		t.Error("StateCommon.IsRead() = true, want false")
	}
}

func TestViewKindHeapType(t *testing.T) {
	tests := []struct {
		kind ViewKind
		want HeapType
	}{
		{ViewSRV, HeapCBVSRVUAV},
		{ViewUAV, HeapCBVSRVUAV},
		{ViewCBV, HeapCBVSRVUAV},
		{ViewRTV, HeapRTV},
		{ViewDSV, HeapDSV},
	}
	for _, tt := range tests {
		if got := tt.kind.HeapType(); got != tt.want {
			t.Errorf("%v.HeapType() = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestUsageHas(t *testing.T) {
	u := UsageRenderTarget | UsageShaderRead
	if !u.Has(UsageRenderTarget) {
		t.Error("Has(RenderTarget) = false")
	}
	if !u.Has(UsageRenderTarget | UsageShaderRead) {
		t.Error("Has(RenderTarget|ShaderRead) = false")
	}
	if u.Has(UsageDepthStencil) {
		t.Error("Has(DepthStencil) = true")
	}
}
