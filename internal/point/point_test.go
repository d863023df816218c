package point

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPoint() Point {
	return Point{
		Interface: 1,
		Payload:   "[0.1, 0.2]",
		OriginID:  Escape,
		Success:   true,
		ID:        "client1_1",
	}
}

func TestValidate_Accepts(t *testing.T) {
	require.NoError(t, validPoint().Validate())

	failed := validPoint()
	failed.Payload = ""
	failed.Success = false
	require.NoError(t, failed.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Point)
	}{
		{"missing id", func(p *Point) { p.ID = "" }},
		{"reserved escape id", func(p *Point) { p.ID = Escape; p.OriginID = "client1_0" }},
		{"missing origin", func(p *Point) { p.OriginID = "" }},
		{"self origin", func(p *Point) { p.OriginID = p.ID }},
		{"negative interface", func(p *Point) { p.Interface = -1 }},
		{"negative steps", func(p *Point) { p.CalcSteps = -5 }},
		{"negative ctime", func(p *Point) { p.CTime = -0.5 }},
		{"nan runtime", func(p *Point) { p.Runtime = math.NaN() }},
		{"infinite ctime", func(p *Point) { p.CTime = math.Inf(1) }},
		{"infinite runtime", func(p *Point) { p.Runtime = math.Inf(1) }},
		{"negative weight", func(p *Point) { p.Weight = -1 }},
		{"infinite weight", func(p *Point) { p.Weight = math.Inf(1) }},
		{"negative usecount", func(p *Point) { p.UseCount = -1 }},
		{"success without payload", func(p *Point) { p.Payload = "" }},
		{"payload without success", func(p *Point) { p.Success = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPoint()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, IsInvalidPoint(err), "got %v", err)
		})
	}
}

func TestPoint_IsRoot(t *testing.T) {
	p := validPoint()
	assert.True(t, p.IsRoot())
	p.OriginID = "client1_0"
	assert.False(t, p.IsRoot())
}

func TestPoint_JSONFieldNaming(t *testing.T) {
	data, err := json.Marshal(validPoint())
	require.NoError(t, err)

	assert.Contains(t, string(data), `"origin_id"`)
	assert.Contains(t, string(data), `"calc_steps"`)
	assert.Contains(t, string(data), `"usecount"`)
	assert.NotContains(t, string(data), `"OriginID"`)
}

func TestError_Helpers(t *testing.T) {
	last := errors.New("database is locked")
	err := fmt.Errorf("add point: %w", NewWriteExhausted("add point", "p1", 3, last))

	assert.True(t, IsWriteExhausted(err))
	assert.False(t, IsDegenerateWeight(err))
	assert.ErrorIs(t, err, last)
	assert.Contains(t, err.Error(), "WRITE_EXHAUSTED")
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Contains(t, err.Error(), "point=p1")

	assert.True(t, IsDegenerateWeight(NewDegenerateWeight("enrich", 2, 0, 1)))
	assert.True(t, IsEmptyDistribution(NewEmptyDistribution("sample", 2, 0)))
	assert.True(t, IsBrokenAncestry(NewBrokenAncestry("c", "b")))
	assert.False(t, IsBrokenAncestry(nil))
}

func TestFilter_Builders(t *testing.T) {
	f := ForInterface(3).Successful().Used().WithOrigin("p1")
	assert.Equal(t, 3, f.Interface)
	assert.Equal(t, OnlySuccess, f.Success)
	assert.Equal(t, OnlyUsed, f.Usage)
	assert.Equal(t, "p1", f.OriginID)
	assert.False(t, f.IncludeDeactivated)

	// Builders return copies.
	base := ForInterface(1)
	_ = base.Failed()
	assert.Equal(t, AnyOutcome, base.Success)

	assert.Equal(t, AllInterfaces, AllPoints().Interface)
}

func TestColumn_Valid(t *testing.T) {
	assert.True(t, ColumnWeight.Valid())
	assert.True(t, ColumnUseCount.Valid())
	assert.False(t, Column("payload").Valid())
	assert.False(t, Column("weight; DROP TABLE configpoints").Valid())
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("client7")
	assert.Equal(t, "client7_1", g.Generate())
	assert.Equal(t, "client7_2", g.Generate())
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestNormalizeID(t *testing.T) {
	// "é" as e + combining acute accent composes to U+00E9.
	assert.Equal(t, "caf\u00e9_1", NormalizeID("  cafe\u0301_1\n"))
	assert.Equal(t, Escape, NormalizeID(Escape))
}
