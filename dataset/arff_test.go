package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/kddbench/pkg/errors"
)

const kddSample = `% KDD sample
@relation 'KDD Train'

@attribute duration real
@attribute 'protocol_type' {tcp, udp, icmp}
@attribute service string
@attribute "src bytes" numeric
@attribute class {normal,anomaly}

@data
0,tcp,http,181,normal
2,udp,'private net',?,anomaly

% trailing comment
0,icmp,http,0,anomaly
`

func TestReadARFF(t *testing.T) {
	d, err := ReadARFF(strings.NewReader(kddSample))
	require.NoError(t, err)

	assert.Equal(t, "KDD Train", d.Relation())
	assert.Equal(t, 3, d.NumRows())
	assert.Equal(t, 5, d.NumAttributes())
	assert.Equal(t, -1, d.ClassIndex())

	proto := d.Attribute(1)
	assert.Equal(t, Nominal, proto.Type)
	assert.Equal(t, []string{"tcp", "udp", "icmp"}, proto.Labels)

	service := d.Attribute(2)
	assert.Equal(t, String, service.Type)
	assert.Equal(t, []string{"http", "private net"}, service.Labels)
	assert.Equal(t, []float64{0, 1, 0}, d.Column(2))

	assert.Equal(t, "src bytes", d.Attribute(3).Name)
	assert.True(t, IsMissing(d.Value(1, 3)))
	assert.Equal(t, 181.0, d.Value(0, 3))
	assert.Equal(t, "anomaly", d.Attribute(4).Label(d.Value(2, 4)))
}

func TestReadARFF_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		line int
	}{
		{
			name: "unknown type",
			doc:  "@relation r\n@attribute a date\n@data\n",
			line: 2,
		},
		{
			name: "label not declared",
			doc:  "@relation r\n@attribute a {x,y}\n@data\nz\n",
			line: 4,
		},
		{
			name: "bad number",
			doc:  "@relation r\n@attribute a numeric\n@data\nabc\n",
			line: 4,
		},
		{
			name: "wrong arity",
			doc:  "@relation r\n@attribute a numeric\n@attribute b numeric\n@data\n1\n",
			line: 5,
		},
		{
			name: "sparse row",
			doc:  "@relation r\n@attribute a numeric\n@data\n{0 1}\n",
			line: 4,
		},
		{
			name: "no data section",
			doc:  "@relation r\n@attribute a numeric\n",
			line: 2,
		},
		{
			name: "duplicate attribute",
			doc:  "@relation r\n@attribute a numeric\n@attribute a numeric\n",
			line: 3,
		},
		{
			name: "unterminated quote",
			doc:  "@relation r\n@attribute a string\n@data\n'abc\n",
			line: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadARFF(strings.NewReader(tt.doc))
			var pe *errors.ParseError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, tt.line, pe.Line)
		})
	}
}

func TestLoadARFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "KDDTest+.arff")
	require.NoError(t, os.WriteFile(path, []byte(kddSample), 0o600))

	d, err := LoadARFF(path)
	require.NoError(t, err)
	assert.Equal(t, 3, d.NumRows())

	_, err = LoadARFF(filepath.Join(t.TempDir(), "missing.arff"))
	assert.Error(t, err)
}

func TestSplitValues(t *testing.T) {
	got, err := splitValues(` a , 'b, c' ,"d\"e", ?`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b, c", `d"e`, "?"}, got)
}
