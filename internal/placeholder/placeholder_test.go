package placeholder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/packtran/internal/placeholder"
)

func TestMask_NoProtectedSpans(t *testing.T) {
	m := placeholder.For("ftbquests")
	got, tm, err := m.Mask("Hello, world!")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", got)
	assert.Empty(t, tm.Originals)
}

func TestMask_PrintfSpecifier(t *testing.T) {
	m := placeholder.For("ftbquests")
	got, tm, err := m.Mask("Defeat the %s boss!")
	require.NoError(t, err)
	assert.Equal(t, "Defeat the ⟦T0⟧ boss!", got)
	assert.Equal(t, []string{"%s"}, tm.Originals)
}

func TestMask_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		tokens int
	}{
		{"section colors", "Press §eShift§r for more", 2},
		{"hex color", "§x§f§f§0§0§0§0Red", 1},
		{"ampersand colors", "&aGreen &lBold", 2},
		{"positional printf", "Use {0} and %1$s", 2},
		{"percent literal", "100% sure", 0},
		{"escaped percent", "50%% off", 1},
		{"escapes", `Line one\nLine two \"quoted\"`, 3},
		{"escaped section sign", `\u00a7cRed`, 1},
		{"resource id", "Gives minecraft:diamond_sword to players", 1},
		{"markup", "<b>Bold</b> text", 2},
		{"translation key", "Craft {item.minecraft.diamond_sword} first", 1},
		{"mixed", "§6%d§r coins for {player}\\n", 5},
	}

	m := placeholder.For("lang_json")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masked, tm, err := m.Mask(tt.text)
			require.NoError(t, err)
			assert.Len(t, tm.Originals, tt.tokens)

			restored, err := placeholder.Unmask(masked, tm)
			require.NoError(t, err)
			assert.Equal(t, tt.text, restored)
		})
	}
}

func TestMask_Deterministic(t *testing.T) {
	m := placeholder.For("kubejs")
	text := "§a%s§r gained {0} levels"

	first, tm1, err := m.Mask(text)
	require.NoError(t, err)
	second, tm2, err := m.Mask(text)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, tm1, tm2)
	assert.Equal(t, "⟦T0⟧⟦T1⟧⟦T2⟧ gained ⟦T3⟧ levels", first)
}

func TestMask_PatchouliMacros(t *testing.T) {
	masked, tm, err := placeholder.For("patchouli").Mask("Use $(item)Diamonds$() wisely")
	require.NoError(t, err)
	assert.Equal(t, "Use ⟦T0⟧Diamonds⟦T1⟧ wisely", masked)
	assert.Equal(t, []string{"$(item)", "$()"}, tm.Originals)

	// Other file types leave the macro to the default rules.
	masked, _, err = placeholder.For("lang_json").Mask("Use $(item)Diamonds")
	require.NoError(t, err)
	assert.Contains(t, masked, "$(item)")
}

func TestMask_AlternateAlphabetOnCollision(t *testing.T) {
	m := placeholder.For("lang")
	text := "Literal ⟦T0⟧ in the source with %s"

	masked, tm, err := m.Mask(text)
	require.NoError(t, err)
	assert.Equal(t, placeholder.Alphabets[1], tm.Alphabet)
	assert.Equal(t, "Literal ⟦T0⟧ in the source with ⟪T0⟫", masked)

	restored, err := placeholder.Unmask(masked, tm)
	require.NoError(t, err)
	assert.Equal(t, text, restored)
}

func TestMask_AllAlphabetsCollide(t *testing.T) {
	text := ""
	for _, a := range placeholder.Alphabets {
		text += a.Open + a.Close
	}
	_, _, err := placeholder.For("lang").Mask(text)
	assert.ErrorIs(t, err, placeholder.ErrCollision)
}

func TestUnmask_Mismatch(t *testing.T) {
	m := placeholder.For("lang")
	_, tm, err := m.Mask("%s and %d")
	require.NoError(t, err)

	tests := []struct {
		name       string
		translated string
	}{
		{"missing token", "⟦T0⟧ only"},
		{"repeated token", "⟦T0⟧ ⟦T0⟧ ⟦T1⟧"},
		{"unknown token", "⟦T0⟧ ⟦T1⟧ ⟦T7⟧"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := placeholder.Unmask(tt.translated, tm)
			assert.ErrorIs(t, err, placeholder.ErrTokenMismatch)
		})
	}
}

func TestUnmask_ReorderedAndSpaced(t *testing.T) {
	_, tm, err := placeholder.For("lang").Mask("%1$s gives %2$s")
	require.NoError(t, err)

	got, err := placeholder.Unmask("⟦ T1 ⟧에게 ⟦T0⟧ 지급", tm)
	require.NoError(t, err)
	assert.Equal(t, "%2$s에게 %1$s 지급", got)
}

func TestValidate_Missing(t *testing.T) {
	_, tm, err := placeholder.For("lang").Mask("%s %s %s")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, placeholder.Validate("⟦T0⟧ text", tm))
	assert.Empty(t, placeholder.Validate("⟦T2⟧⟦T1⟧⟦T0⟧", tm))
}

func TestOnlyTokens(t *testing.T) {
	m := placeholder.For("lang")
	tests := []struct {
		text string
		want bool
	}{
		{"%s", true},
		{"§a%d§r / %d", true},
		{"{0}: {1}", true},
		{"%s blocks", false},
		{"모든 %s", false},
	}
	for _, tt := range tests {
		masked, tm, err := m.Mask(tt.text)
		require.NoError(t, err)
		assert.Equal(t, tt.want, placeholder.OnlyTokens(masked, tm), tt.text)
	}
}

func TestNew_InvalidRule(t *testing.T) {
	_, err := placeholder.New(placeholder.Rule{Name: "broken", Pattern: "("})
	assert.Error(t, err)
}

func TestInstructionHint_NotEmpty(t *testing.T) {
	assert.NotEmpty(t, placeholder.InstructionHint())
}
