package parameters

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameters_GetSet(t *testing.T) {
	p := New()
	p.Declare("mass::B_d", 5.27966, 5.27, 5.29)

	v, err := p.Get("mass::B_d")
	require.NoError(t, err)
	assert.Equal(t, 5.27966, v)

	before := p.Version()
	require.NoError(t, p.Set("mass::B_d", 5.28))
	assert.Greater(t, p.Version(), before)

	v, _ = p.Get("mass::B_d")
	assert.Equal(t, 5.28, v)

	min, max, err := p.Range("mass::B_d")
	require.NoError(t, err)
	assert.Equal(t, 5.27, min)
	assert.Equal(t, 5.29, max)
}

func TestParameters_UnknownNameIsConfigurationError(t *testing.T) {
	p := New()

	_, err := p.Get("mass::X")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "mass::X", cfgErr.Key)

	assert.Error(t, p.Set("mass::X", 1))
	_, err = p.Handle("mass::X")
	assert.Error(t, err)
}

func TestParameters_HandleSeesUpdates(t *testing.T) {
	p := New()
	p.Declare("a", 1, 0, 2)

	h, err := p.Handle("a")
	require.NoError(t, err)
	assert.Equal(t, "a", h.Name())
	assert.Equal(t, 1.0, h.Value())

	require.NoError(t, p.Set("a", 1.5))
	assert.Equal(t, 1.5, h.Value())

	before := p.Version()
	h.Set(0.5)
	assert.Equal(t, 0.5, h.Value())
	assert.Greater(t, p.Version(), before)
}

func TestParameters_UsedByRegistry(t *testing.T) {
	p := New()
	p.Declare("a", 1, 0, 2)
	p.Declare("b", 1, 0, 2)

	require.NoError(t, p.Uses("gen1", "a"))
	require.NoError(t, p.Uses("gen1", "b"))
	require.NoError(t, p.Uses("gen2", "a"))
	require.NoError(t, p.Uses("gen2", "a"))

	assert.Equal(t, []string{"gen1", "gen2"}, p.UsersOf("a"))
	assert.Equal(t, []string{"gen1"}, p.UsersOf("b"))
	assert.Equal(t, []string{"a", "b"}, p.UsedBy("gen1"))
	assert.Error(t, p.Uses("gen1", "missing"))
}

func TestParameters_CloneIsIndependent(t *testing.T) {
	p := New()
	p.Declare("a", 1, 0, 2)
	require.NoError(t, p.Uses("gen", "a"))

	c := p.Clone()
	require.NoError(t, c.Set("a", 1.9))
	require.NoError(t, c.Uses("other", "a"))

	v, _ := p.Get("a")
	assert.Equal(t, 1.0, v)
	assert.Equal(t, []string{"gen"}, p.UsersOf("a"))
	assert.Equal(t, []string{"gen", "other"}, c.UsersOf("a"))

	hp, _ := p.Handle("a")
	require.NoError(t, c.Set("a", 0.1))
	assert.Equal(t, 1.0, hp.Value())
}

func TestReader_KeepsFirstError(t *testing.T) {
	p := New()
	p.Declare("a", 1, 0, 2)

	r := NewReader(p, "gen")
	assert.NotNil(t, r.Handle("a"))
	assert.Nil(t, r.Handle("missing"))
	assert.Nil(t, r.Handle("a"))
	require.Error(t, r.Err())
	assert.Contains(t, r.Err().Error(), "missing")
	assert.Equal(t, []string{"a"}, p.UsedBy("gen"))
}

func TestDefaults(t *testing.T) {
	p, err := Defaults()
	require.NoError(t, err)

	tests := []struct {
		name string
		want float64
	}{
		{"QM::hbar", 6.582119569e-25},
		{"WET::G_Fermi", 1.1663787e-05},
		{"mass::B_d", 5.27966},
		{"mass::D_d^*", 2.01026},
		{"cbmunumu::Re{cVL}", 1.0},
		{"cbtaunutau::Im{cT}", 0.0},
		{"B->D^*::alpha^V_0@BSZ2015", 0.76},
		{"B->D::alpha^f+_0@BSZ2015", 0.66},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := p.Get(tt.name)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, v, 1e-30+1e-12*tt.want)
		})
	}

	// ckm.yaml sorts first
	assert.Equal(t, "CKM::abs(V_cb)", p.Names()[0])
}

func TestLoad_PreservesFileOrderAndRejectsDuplicates(t *testing.T) {
	fsys := fstest.MapFS{
		"data/a.yaml": {Data: []byte("\"z\": { central: 1, min: 0, max: 2 }\n\"y\": { central: 2, min: 0, max: 3 }\n")},
		"data/b.yaml": {Data: []byte("\"x\": { central: 3, min: 0, max: 4 }\n")},
		"data/c.txt":  {Data: []byte("ignored")},
	}
	p, err := Load(fsys, "data")
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "y", "x"}, p.Names())

	dup := fstest.MapFS{
		"data/a.yaml": {Data: []byte("\"z\": { central: 1, min: 0, max: 2 }\n")},
		"data/b.yaml": {Data: []byte("\"z\": { central: 1, min: 0, max: 2 }\n")},
	}
	_, err = Load(dup, "data")
	assert.Error(t, err)

	inverted := fstest.MapFS{
		"data/a.yaml": {Data: []byte("\"z\": { central: 1, min: 3, max: 2 }\n")},
	}
	_, err = Load(inverted, "data")
	assert.Error(t, err)
}
