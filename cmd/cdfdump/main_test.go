package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-cdf/cdf"
	"github.com/batchatco/go-native-cdf/cdf/epoch"
	"github.com/batchatco/go-native-cdf/cdf/record"
	"github.com/batchatco/go-native-cdf/cdf/types"
	"github.com/batchatco/go-native-cdf/cdf/writer"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleFile(t *testing.T, dir string) string {
	t.Helper()
	w, err := writer.New()
	require.NoError(t, err)
	ev, err := w.DefineVariable(writer.VariableSpec{Name: "Epoch", Type: types.TT2000})
	require.NoError(t, err)
	times := []time.Time{start, start.Add(time.Second), start.Add(2 * time.Second)}
	require.NoError(t, ev.AddData(times, nil, false, false))
	bv, err := w.DefineVariable(writer.VariableSpec{Name: "B", Type: types.Real8, Dims: []int{3},
		Compressed: true})
	require.NoError(t, err)
	require.NoError(t, bv.AddData([][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}, nil, false, false))
	require.NoError(t, bv.SetAttribute("DEPEND_0", "Epoch"))
	require.NoError(t, bv.SetAttribute("FILLVAL", writer.Entry{Type: types.Real8, Value: -1e31}))
	sv, err := w.DefineVariable(writer.VariableSpec{Name: "Flag", Type: types.Int2,
		Sparse: record.SparsePrevious, Pad: int16(-1)})
	require.NoError(t, err)
	require.NoError(t, sv.AddData([]int16{1}, nil, false, false))
	require.NoError(t, sv.AddData([]int16{5}, []int{4}, false, false))
	lv, err := w.DefineVariable(writer.VariableSpec{Name: "Label", Type: types.Char, NumElems: 8,
		Dims: []int{3}, NoRecordVariance: true})
	require.NoError(t, err)
	require.NoError(t, lv.AddData([]string{"Bx", "By", "Bz"}, nil, false, false))
	require.NoError(t, w.AddGlobalAttribute("Project", "ISTP", nil, []string{"Space", "Physics"}))
	require.NoError(t, w.AddGlobalAttribute("Version", int32(4)))

	path := filepath.Join(dir, "sample.cdf")
	require.NoError(t, w.Create(path))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	// Never read the user's config.
	full := append([]string{"cdfdump", "--config", filepath.Join(t.TempDir(), "none.yaml")}, args...)
	err := app.Run(context.Background(), full)
	return out.String(), err
}

func TestInfo(t *testing.T) {
	path := sampleFile(t, t.TempDir())
	out, err := run(t, "info", path)
	require.NoError(t, err)
	require.Contains(t, out, "version:")
	require.Contains(t, out, "3.9.0")
	require.Contains(t, out, "ibmpc")

	out, err = run(t, "--json", "info", path)
	require.NoError(t, err)
	var infos []fileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	require.Equal(t, 4, infos[0].Variables)
	// Variable attributes count too.
	require.Equal(t, 4, infos[0].Attributes)
	require.True(t, infos[0].RowMajor)
	require.Equal(t, epoch.LastLeapSecondID(), infos[0].LeapSecondID)

	_, err = run(t, "info")
	require.Error(t, err)
	_, err = run(t, "info", filepath.Join(t.TempDir(), "missing.cdf"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestVars(t *testing.T) {
	path := sampleFile(t, t.TempDir())
	out, err := run(t, "vars", path)
	require.NoError(t, err)
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "CDF_TT2000")
	require.Contains(t, out, "previous")

	out, err = run(t, "--json", "vars", path)
	require.NoError(t, err)
	var all map[string][]varInfo
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	vars := all[path]
	require.Len(t, vars, 4)
	require.Equal(t, "B", vars[1].Name)
	require.Equal(t, []int{3}, vars[1].Dims)
	require.Equal(t, 3, vars[1].Records)
	require.True(t, vars[1].Compressed)
	require.Equal(t, "Epoch", vars[1].Depend0)
	require.Equal(t, 5, vars[2].Records)
	require.Equal(t, 1, vars[3].Records)
}

func TestAttrs(t *testing.T) {
	path := sampleFile(t, t.TempDir())
	out, err := run(t, "attrs", path)
	require.NoError(t, err)
	require.Contains(t, out, "ISTP")
	require.Contains(t, out, "Physics")

	out, err = run(t, "--json", "attrs", "--var", "B", path)
	require.NoError(t, err)
	var all map[string][]attrInfo
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	attrs := all[path]
	require.Len(t, attrs, 2)
	require.Equal(t, "DEPEND_0", attrs[0].Name)
	require.Equal(t, "Epoch", attrs[0].Value)
	require.Equal(t, "CDF_REAL8", attrs[1].Type)

	_, err = run(t, "attrs", "--var", "nope", path)
	require.Error(t, err)
}

func TestDump(t *testing.T) {
	path := sampleFile(t, t.TempDir())
	out, err := run(t, "dump", "--var", "Flag", path)
	require.NoError(t, err)
	require.Contains(t, out, "Flag (CDF_INT2): [1 1 1 1 5]")

	out, err = run(t, "--json", "dump", "--records", "1:2", path)
	require.NoError(t, err)
	var all map[string][]struct {
		Name   string `json:"name"`
		Values any    `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	vars := all[path]
	require.Len(t, vars, 4)
	require.Equal(t, "Epoch", vars[0].Name)
	require.Equal(t, []any{"2020-01-01T00:00:01Z", "2020-01-01T00:00:02Z"}, vars[0].Values)
	require.Equal(t, []any{[]any{4.0, 5.0, 6.0}, []any{7.0, 8.0, 9.0}}, vars[1].Values)
	require.Equal(t, []any{"Bx", "By", "Bz"}, vars[3].Values)

	out, err = run(t, "--time-units", "ms", "--json", "dump", "--var", "Epoch", "--records", "2", path)
	require.NoError(t, err)
	require.InDelta(t, float64(start.Add(2*time.Second).UnixMilli()), singleValue(t, out, path), 1e-3)

	_, err = run(t, "dump", "--records", "x", path)
	require.Error(t, err)
	_, err = run(t, "--time-units", "fortnights", "dump", path)
	require.Error(t, err)
	_, err = run(t, "dump", "--var", "nope", path)
	require.Error(t, err)
}

// singleValue decodes dump --json output holding one numeric value.
func singleValue(t *testing.T, out, path string) float64 {
	t.Helper()
	var all map[string][]struct {
		Values float64 `json:"values"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all[path], 1)
	return all[path][0].Values
}

func TestParseRecords(t *testing.T) {
	pt, err := parseRecords("")
	require.NoError(t, err)
	require.Nil(t, pt)
	pt, err = parseRecords("7")
	require.NoError(t, err)
	require.Equal(t, []int{7}, pt)
	pt, err = parseRecords("2:9")
	require.NoError(t, err)
	require.Equal(t, []int{2, 9}, pt)
	_, err = parseRecords("2:")
	require.Error(t, err)
}

func TestRewrite(t *testing.T) {
	dir := t.TempDir()
	path := sampleFile(t, dir)
	copyPath := filepath.Join(dir, "copy.cdf")
	_, err := run(t, "rewrite", "--encoding", "network", "--column-major", "--compress",
		"--compress-vars", path, copyPath)
	require.NoError(t, err)

	orig, err := cdf.Open(path)
	require.NoError(t, err)
	defer orig.Close()
	cp, err := cdf.Open(copyPath)
	require.NoError(t, err)
	defer cp.Close()

	require.Equal(t, types.EncodingNetwork, cp.Encoding())
	require.False(t, cp.RowMajor())
	require.True(t, cp.Compressed())
	require.Equal(t, orig.ListVariables(), cp.ListVariables())
	for _, name := range orig.ListVariables() {
		want, err := orig.Values(name, nil)
		require.NoError(t, err)
		got, err := cp.Values(name, nil)
		require.NoError(t, err)
		require.Equal(t, want, got, name)
		info, err := cp.VariableInfo(name)
		require.NoError(t, err)
		require.True(t, info.Compressed, name)
	}
	bufs, err := cp.DataBuffers("Flag")
	require.NoError(t, err)
	require.Len(t, bufs, 2)

	for _, attr := range []string{"Project", "Version"} {
		want, _ := orig.Attributes().Get(attr)
		got, _ := cp.Attributes().Get(attr)
		require.Equal(t, want, got)
		wantType, _ := orig.Attributes().GetType(attr)
		gotType, _ := cp.Attributes().GetType(attr)
		require.Equal(t, wantType, gotType)
	}
	project, _ := cp.Attributes().Get("Project")
	require.Equal(t, []any{"ISTP", nil, []string{"Space", "Physics"}}, project)
	attrs, err := cp.VariableAttributes("B")
	require.NoError(t, err)
	fill, _ := attrs.Get("FILLVAL")
	require.Equal(t, []float64{-1e31}, fill)

	_, err = run(t, "rewrite", path)
	require.Error(t, err)
	_, err = run(t, "rewrite", "--encoding", "vax", path, filepath.Join(dir, "vax.cdf"))
	require.ErrorIs(t, err, types.ErrUnsupportedEncoding)
}

func TestConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"missing_records: pad\nmax_mapped_memory: 1024\nlog_level: 1\ntime_units: us\n"), 0o644))
	cfg, err := loadConfig(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "pad", cfg.MissingRecords)
	require.Equal(t, int64(1024), *cfg.MaxMappedMemory)
	require.Equal(t, 1, *cfg.LogLevel)
	require.Equal(t, "us", cfg.TimeUnits)

	cfg, err = loadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Config{}, cfg)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log_level: [1"), 0o644))
	_, err = loadConfig(bad)
	require.Error(t, err)

	// Config values apply, flags win.
	path := sampleFile(t, dir)
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err = app.Run(context.Background(), []string{"cdfdump", "--config", cfgPath,
		"--log-level", "2", "--json", "dump", "--var", "Epoch", "--records", "0", path})
	require.NoError(t, err)
	require.InDelta(t, float64(start.UnixMicro()), singleValue(t, out.String(), path), 1e-3)
}
