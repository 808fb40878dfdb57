package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/packtran/internal/placeholder"
)

func TestDecode(t *testing.T) {
	ids := []string{"0", "1"}
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"wrapped entries", `{"translations":[{"id":"0","text":"가"},{"id":"1","text":"나"}]}`, map[string]string{"0": "가", "1": "나"}},
		{"wrapped map", `{"translations":{"0":"가","1":"나"}}`, map[string]string{"0": "가", "1": "나"}},
		{"bare map", `{"0":"가","1":"나"}`, map[string]string{"0": "가", "1": "나"}},
		{"entries with numeric ids", `[{"id":0,"text":"가"},{"id":1,"translation":"나"}]`, map[string]string{"0": "가", "1": "나"}},
		{"positional strings", `["가","나"]`, map[string]string{"0": "가", "1": "나"}},
		{"positional entries", `[{"text":"가"},{"text":"나"}]`, map[string]string{"0": "가", "1": "나"}},
		{"partial keyed", `{"translations":[{"id":"1","text":"나"}]}`, map[string]string{"1": "나"}},
		{"surrounding prose", "Result:\n{\"0\":\"가\",\"1\":\"나\"}\nHope this helps.", map[string]string{"0": "가", "1": "나"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw, ids)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	ids := []string{"0", "1"}

	_, err := Decode("I cannot translate this.", ids)
	assert.ErrorIs(t, err, ErrNotStructured)

	_, err = Decode(`{"translations": [{"id": "0", "text": "가"`, ids)
	assert.ErrorIs(t, err, ErrNotStructured)

	_, err = Decode(`["가"]`, ids)
	assert.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Decode(`{"translations": ["가", "나", "다"]}`, ids)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestCheck(t *testing.T) {
	m := placeholder.For("lang")
	masked, tm, err := m.Mask("Defeat the %s boss!")
	require.NoError(t, err)
	require.Equal(t, "Defeat the ⟦T0⟧ boss!", masked)

	v := New()
	out, err := v.Check(masked, "⟦T0⟧ 보스를 물리쳐라!", tm)
	require.NoError(t, err)
	assert.Equal(t, "%s 보스를 물리쳐라!", out)

	_, err = v.Check(masked, "보스를 물리쳐라!", tm)
	assert.ErrorIs(t, err, placeholder.ErrTokenMismatch)

	_, err = v.Check(masked, "⟦T0⟧ ⟦T0⟧ 보스", tm)
	assert.ErrorIs(t, err, placeholder.ErrTokenMismatch)

	_, err = v.Check(masked, "   ", tm)
	assert.ErrorIs(t, err, ErrEmpty)

	out, err = v.Check("", "", placeholder.TokenMap{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCheck_Language(t *testing.T) {
	v := NewWithLanguage("en", "ko")
	english := "This is a longer piece of text that is still written in English."

	_, err := v.Check(english, english, placeholder.TokenMap{})
	assert.ErrorIs(t, err, ErrWrongLanguage)

	korean := "이 문장은 한국어로 충분히 길게 작성된 번역 결과입니다."
	out, err := v.Check(english, korean, placeholder.TokenMap{})
	require.NoError(t, err)
	assert.Equal(t, korean, out)

	short := "Stone"
	_, err = v.Check(short, short, placeholder.TokenMap{})
	assert.NoError(t, err)

	_, err = NewWithLanguage("en", "en").Check(english, english, placeholder.TokenMap{})
	assert.NoError(t, err)
}
