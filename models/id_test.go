package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequentialIDGenerator(t *testing.T) {
	t.Run("new ids increase", func(t *testing.T) {
		var ids SequentialIDGenerator

		for i := 1; i <= 5; i++ {
			require.Equal(t, uint32(i), ids.New())
		}
	})

	t.Run("released ids come back lowest first", func(t *testing.T) {
		var ids SequentialIDGenerator
		for i := 1; i <= 5; i++ {
			ids.New()
		}

		ids.Reuse(4)
		ids.Reuse(2)
		ids.Reuse(4)

		require.Equal(t, uint32(2), ids.New())
		require.Equal(t, uint32(4), ids.New())
		require.Equal(t, uint32(6), ids.New())
	})

	t.Run("unknown ids are not released", func(t *testing.T) {
		var ids SequentialIDGenerator
		ids.New()

		ids.Reuse(0)
		ids.Reuse(42)

		require.Equal(t, uint32(2), ids.New())
	})
}
