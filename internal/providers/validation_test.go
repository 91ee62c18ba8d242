package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMultiView_FrontOnlyIsValid(t *testing.T) {
	err := ValidateMultiView(map[View][]byte{ViewFront: []byte("f")})
	assert.NoError(t, err)
}

func TestValidateMultiView_FullSetIsValid(t *testing.T) {
	err := ValidateMultiView(map[View][]byte{
		ViewFront: []byte("f"), ViewLeft: []byte("l"), ViewBack: []byte("b"), ViewRight: []byte("r"),
	})
	assert.NoError(t, err)
}

func TestValidateMultiView_MissingFrontIsRejected(t *testing.T) {
	err := ValidateMultiView(map[View][]byte{ViewLeft: []byte("l")})
	assert.ErrorIs(t, err, ErrFrontViewRequired)
}

func TestValidateMultiView_GapIsRejected(t *testing.T) {
	// front + back present but left missing: not a gapless prefix.
	err := ValidateMultiView(map[View][]byte{
		ViewFront: []byte("f"), ViewBack: []byte("b"),
	})
	assert.ErrorIs(t, err, ErrViewGap)
}

func TestValidateMultiView_TrailingGapIsRejected(t *testing.T) {
	// front + left + right present but back missing.
	err := ValidateMultiView(map[View][]byte{
		ViewFront: []byte("f"), ViewLeft: []byte("l"), ViewRight: []byte("r"),
	})
	assert.ErrorIs(t, err, ErrViewGap)
}

func TestOrderedViews_PreservesFixedOrder(t *testing.T) {
	views := map[View][]byte{
		ViewRight: []byte("r"), ViewFront: []byte("f"), ViewBack: []byte("b"), ViewLeft: []byte("l"),
	}
	ordered := OrderedViews(views)
	assert.Equal(t, [][]byte{[]byte("f"), []byte("l"), []byte("b"), []byte("r")}, ordered)
}
