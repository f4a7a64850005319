package importers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/encoding/charmap"
)

func TestFixEncoding(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase accents", "Ã©tÃ© Ã\u00a0 la plage", "été à la plage"},
		{"cedilla and oe", "Le garÃ§on et sa sÅ“ur", "Le garçon et sa sœur"},
		{"uppercase", "Ã‰mile ZOLA, Ã€ rebours", "Émile ZOLA, À rebours"},
		{"circumflex", "forÃªt, chÃ¢teau, hÃ´tel, coÃ»t, Ã®le", "forêt, château, hôtel, coût, île"},
		{"replacement char", "Ren\ufffd", "Rene"},
		{"already correct", "Les Misérables", "Les Misérables"},
		{"plain ascii", "Dune", "Dune"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FixEncoding(tt.in))
		})
	}
}

func TestFixEncoding_Idempotent(t *testing.T) {
	inputs := []string{
		"Ã©tÃ© Ã\u00a0 la plage",
		"Le garÃ§on et sa sÅ“ur",
		"Ã‰mile Ã‡a Ã”",
		"mixed é and Ã¨",
		"Ren\ufffd",
	}
	for _, in := range inputs {
		once := FixEncoding(in)
		assert.Equal(t, once, FixEncoding(once), "input %q", in)
	}
}

func TestDecodeText_Windows1252Bytes(t *testing.T) {
	raw, err := charmap.Windows1252.NewEncoder().String("titre;auteur\nL'Étranger;Albert Camus\n")
	assert.NoError(t, err)

	text := DecodeText([]byte(raw))

	assert.Equal(t, "titre;auteur\nL'Étranger;Albert Camus\n", text)
}

func TestDecodeText_StripsBOMAndRepairs(t *testing.T) {
	text := DecodeText([]byte("\xEF\xBB\xBFtitre;auteur\nLa ForÃªt;Inconnu"))

	assert.Equal(t, "titre;auteur\nLa Forêt;Inconnu", text)
}
