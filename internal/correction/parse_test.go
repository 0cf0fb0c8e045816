package correction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpdates(t *testing.T) {
	want := []Update{
		{ID: 1, Speaker: "JUIZ(A)", Text: "Declaro aberta a audiência."},
		{ID: 2, Speaker: "DEPOENTE", Text: "Bom dia, Excelência."},
	}
	bare := `[{"id":1,"speaker":"JUIZ(A)","text":"Declaro aberta a audiência."},{"id":2,"speaker":"DEPOENTE","text":"Bom dia, Excelência."}]`

	t.Run("bare array", func(t *testing.T) {
		updates, err := ParseUpdates(bare)
		require.NoError(t, err)
		assert.Equal(t, want, updates)
	})

	t.Run("fenced code block", func(t *testing.T) {
		updates, err := ParseUpdates("```json\n" + bare + "\n```")
		require.NoError(t, err)
		assert.Equal(t, want, updates)
	})

	t.Run("fenced block without language tag", func(t *testing.T) {
		updates, err := ParseUpdates("```\n" + bare + "\n```")
		require.NoError(t, err)
		assert.Equal(t, want, updates)
	})

	t.Run("array embedded in prose", func(t *testing.T) {
		updates, err := ParseUpdates("Aqui estão as correções solicitadas:\n" + bare + "\nEspero ter ajudado.")
		require.NoError(t, err)
		assert.Equal(t, want, updates)
	})

	t.Run("all shapes parse identically", func(t *testing.T) {
		shapes := []string{
			bare,
			"```json\n" + bare + "\n```",
			"Segue o resultado: " + bare + " Fim.",
		}
		for _, shape := range shapes {
			updates, err := ParseUpdates(shape)
			require.NoError(t, err)
			assert.Equal(t, want, updates)
		}
	})

	t.Run("no array anywhere", func(t *testing.T) {
		_, err := ParseUpdates("Desculpe, não consigo processar esse pedido.")
		assert.Error(t, err)
	})

	t.Run("malformed array", func(t *testing.T) {
		_, err := ParseUpdates(`[{"id": "not-a-number"...`)
		assert.Error(t, err)
	})

	t.Run("empty array", func(t *testing.T) {
		updates, err := ParseUpdates("[]")
		require.NoError(t, err)
		assert.Empty(t, updates)
	})
}
