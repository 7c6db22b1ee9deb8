package identity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_SameKeysDifferentOrder(t *testing.T) {
	var p1, p2 any
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":2}`), &p1))
	require.NoError(t, json.Unmarshal([]byte(`{"b":2,"a":1}`), &p2))

	h1, err := Hash("T", p1)
	require.NoError(t, err)
	h2, err := Hash("T", p2)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHash_NestedKeyOrderIrrelevant(t *testing.T) {
	var p1, p2 any
	require.NoError(t, json.Unmarshal([]byte(`{"outer":{"x":1,"y":{"z":2,"w":3}}}`), &p1))
	require.NoError(t, json.Unmarshal([]byte(`{"outer":{"y":{"w":3,"z":2},"x":1}}`), &p2))

	h1, err := Hash("T", p1)
	require.NoError(t, err)
	h2, err := Hash("T", p2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHash_ArrayOrderMatters(t *testing.T) {
	var p1, p2 any
	require.NoError(t, json.Unmarshal([]byte(`{"list":[1,2,3]}`), &p1))
	require.NoError(t, json.Unmarshal([]byte(`{"list":[3,2,1]}`), &p2))

	h1, err := Hash("T", p1)
	require.NoError(t, err)
	h2, err := Hash("T", p2)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHash_DifferentJobTypeDiffers(t *testing.T) {
	var p any
	require.NoError(t, json.Unmarshal([]byte(`{"a":1}`), &p))

	h1, err := Hash("T1", p)
	require.NoError(t, err)
	h2, err := Hash("T2", p)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestNewID_Unique(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
