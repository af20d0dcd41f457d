package intake

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mortgageintake/pkg/domain"
)

func TestDecodeArrayBatch(t *testing.T) {
	actions, err := Decode([]byte(`[
		{"kind":"addClient","params":{"firstName":"Jane","lastName":"Doe"},"returnId":"c1"},
		{"kind":"updateClient","params":{"id":"$c1","updates":{"email":"jane@example.com"}}},
		{"kind":"addEmploymentRecord","params":{"clientId":"$c1"},"returnId":"$e1","index":9},
		{"kind":"launchRocket","params":{"target":"moon"}}
	]`))
	require.NoError(t, err)
	require.Len(t, actions, 4)

	assert.Equal(t, domain.KindAddClient, actions[0].Kind)
	assert.Equal(t, "$c1", actions[0].ReturnID)

	assert.Equal(t, domain.KindUpdateClient, actions[1].Kind, "updateClient is an alias")
	assert.Equal(t, "$c1", actions[1].ClientID())

	assert.Equal(t, domain.KindAddEmploymentRecord, actions[2].Kind)
	assert.Equal(t, 2, actions[2].Index, "indexes follow batch position")

	unknown, ok := actions[3].Params.(*domain.UnknownParams)
	require.True(t, ok)
	assert.JSONEq(t, `{"target":"moon"}`, string(unknown.Raw))
}

func TestDecodeObjectBatch(t *testing.T) {
	actions, err := DecodeReader(strings.NewReader(`{"actions":[{"kind":"addAsset","params":{"clientId":"client-1"},"returnId":"a1"}],"model":"intent-v2"}`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, domain.KindAddAsset, actions[0].Kind)
	assert.Equal(t, "client-1", actions[0].ClientID())
	assert.Equal(t, 0, actions[0].Index)
}

func TestDecodeRejectsMalformedBatches(t *testing.T) {
	cases := map[string]string{
		"not json":          `[{"kind":`,
		"scalar":            `42`,
		"missing kind":      `[{"params":{}}]`,
		"empty kind":        `[{"kind":""}]`,
		"params not object": `[{"kind":"addClient","params":[1,2]}]`,
		"returnId number":   `[{"kind":"addClient","returnId":7}]`,
		"negative index":    `[{"kind":"addClient","index":-1}]`,
		"object no actions": `{"batch":[]}`,
		"typed params":      `[{"kind":"updateClientData","params":{"clientId":5}}]`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedAction), "got %v", err)
			assert.Equal(t, 1, strings.Count(err.Error(), domain.ErrMalformedAction.Error()), "sentinel should appear once: %v", err)
		})
	}
}

func TestDecodeNullParams(t *testing.T) {
	actions, err := Decode([]byte(`[{"kind":"addClient","params":null}]`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	_, ok := actions[0].Params.(*domain.AddClientParams)
	assert.True(t, ok)
}

func TestDecodeEmptyBatch(t *testing.T) {
	actions, err := Decode([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, actions)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("pipe closed") }

func TestDecodeReaderPropagatesReadErrors(t *testing.T) {
	_, err := DecodeReader(errReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipe closed")
	assert.False(t, errors.Is(err, domain.ErrMalformedAction))
}
