package importers

// AliasTable lists, for every MappedBook field, the column names that may
// carry it. Names are matched case-insensitively and the first non-blank
// value wins, so order expresses preference. Supporting a new export tool
// means extending these lists, not the mapper.
type AliasTable struct {
	Title           []string
	Author          []string
	ISBN            []string
	Publisher       []string
	Pages           []string
	Year            []string
	Rating          []string
	RatingSecondary []string // scale-specific labels tried when Rating is blank
	Status          []string
	DateRead        []string
	DatePurchase    []string
	Review          []string
	Notes           []string
	Genres          []string // single combined genre column
	Genre1          []string
	Genre2          []string
	Language        []string
	Collection      []string
	BookType        []string
}

// DefaultAliases covers Livraddict, Babelio-style and generic English exports.
var DefaultAliases = AliasTable{
	Title:           []string{"titre", "title", "titre vf", "titre vo"},
	Author:          []string{"auteur", "author", "auteur(s)", "auteurs", "authors"},
	ISBN:            []string{"isbn", "isbn13", "isbn 13", "isbn-13", "isbn10", "isbn 10", "isbn-10", "ean"},
	Publisher:       []string{"editeur", "éditeur", "publisher", "maison d'édition", "maison d'edition"},
	Pages:           []string{"pages", "nombre de pages", "nb pages", "nb de pages", "number of pages", "page count"},
	Year:            []string{"annee", "année", "year", "année de publication", "date de publication", "year published", "publication year"},
	Rating:          []string{"note", "rating", "ma note"},
	RatingSecondary: []string{"note personnelle (/20)", "note personnelle", "note (/20)", "note sur 20", "note /20"},
	Status:          []string{"statut", "status", "statut de lecture", "etat", "état"},
	DateRead:        []string{"date de lecture", "date read", "date lecture", "lu le", "date de fin de lecture"},
	DatePurchase:    []string{"date d'achat", "date achat", "date purchased", "acheté le"},
	Review:          []string{"critique", "avis", "review", "my review", "commentaire"},
	Notes:           []string{"notes", "notes privées", "note privée", "private notes", "remarques"},
	Genres:          []string{"genres", "genre", "catégories", "categories", "catégorie"},
	Genre1:          []string{"genre 1", "genre1"},
	Genre2:          []string{"genre 2", "genre2"},
	Language:        []string{"langue", "language", "lang"},
	Collection:      []string{"collection", "série", "serie", "series", "saga"},
	BookType:        []string{"type", "format", "support", "binding"},
}

// titleColumns decides whether a parsed row is kept at all.
var titleColumns = DefaultAliases.Title
