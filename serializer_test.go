package cartflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEventType(t *testing.T) {
	assert.Equal(t, "tallyOpened", GetEventType(tallyOpened{}))
	assert.Equal(t, "tallyOpened", GetEventType(&tallyOpened{}))
	assert.Equal(t, "TallyClosed", GetEventType(tallyClosed{}))
	assert.Equal(t, "", GetEventType(nil))
}

func TestEventRegistry(t *testing.T) {
	r := NewEventRegistry()
	r.RegisterAll(tallyIncremented{}, &tallyOpened{})
	r.Register("Closed", tallyClosed{})

	assert.Equal(t, []string{"Closed", "tallyIncremented", "tallyOpened"}, r.RegisteredTypes())

	v, err := r.New("tallyOpened")
	require.NoError(t, err)
	assert.IsType(t, &tallyOpened{}, v)

	_, err = r.New("missing")
	assert.ErrorIs(t, err, ErrEventTypeNotRegistered)
}

func TestJSONSerializer(t *testing.T) {
	s := NewJSONSerializer()
	s.RegisterAll(tallyIncremented{})

	data, err := s.Serialize(tallyIncremented{By: 9})
	require.NoError(t, err)
	assert.JSONEq(t, `{"by":9}`, string(data))

	v, err := s.Deserialize(data, "tallyIncremented")
	require.NoError(t, err)
	assert.Equal(t, tallyIncremented{By: 9}, v)

	_, err = s.Serialize(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = s.Serialize(func() {})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = s.Deserialize(nil, "tallyIncremented")
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = s.Deserialize([]byte(`{"by":"x"}`), "tallyIncremented")
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = s.Deserialize(data, "unknown")
	assert.ErrorIs(t, err, ErrEventTypeNotRegistered)
}

func TestStreamName(t *testing.T) {
	name, err := ParseStreamName("shopping_cart-0b6e-4f2a")
	require.NoError(t, err)
	assert.Equal(t, NewStreamName("shopping_cart", "0b6e-4f2a"), name)
	assert.Equal(t, "shopping_cart-0b6e-4f2a", name.String())
	assert.NoError(t, name.Validate())

	_, err = ParseStreamName("nohyphen")
	assert.Error(t, err)
	assert.Error(t, StreamName{ID: "1"}.Validate())
	assert.Error(t, StreamName{Kind: "x"}.Validate())

	assert.Equal(t, "shopping_cart-1", BuildStreamName("shopping_cart", "1"))
	assert.NotEmpty(t, Version())
}

func TestMetadata(t *testing.T) {
	base := Metadata{}.WithCustom("a", "1")
	derived := base.WithCustom("b", "2").WithUserID("u")

	assert.Equal(t, map[string]string{"a": "1"}, base.Custom)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, derived.Custom)
	assert.True(t, Metadata{}.IsEmpty())
	assert.False(t, derived.IsEmpty())
}
