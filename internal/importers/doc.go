// Package importers turns library export files into books on a user's shelf.
//
// # Architecture
//
// The import pipeline follows a simple flow:
//
//	file bytes → DecodeText/FixEncoding → ParseDelimited | ParseWorkbook → Row
//	          → MapRow → MappedBook → Pipeline.Import → LibraryStore
//
// DecodeText repairs text exported by legacy tools (Windows-1252 bytes read as
// UTF-8). ParseDelimited detects the delimiter from the header line, keeps
// input order and drops lines that carry no title; the number of dropped lines
// is reported separately from row errors.
//
// MapRow knows nothing about specific tools. Column names are resolved through
// AliasTable, so supporting another export is a matter of adding names:
//
//	aliases := importers.DefaultAliases
//	aliases.Rating = append(aliases.Rating, "score")
//	book := aliases.MapRow(row)
//
// # Merge Semantics
//
// Pipeline.Import resolves each row to a canonical Book (by ISBN, else by
// title and author), creating and enriching it when missing, then creates the
// user's UserBook. A row whose UserBook already exists counts as a duplicate,
// so importing the same file twice changes nothing. Enrichment only fills
// empty fields.
//
// Rows run on a bounded worker pool (Config.Workers). Per-key locks plus the
// database unique indexes keep concurrent rows from creating the same book
// twice. A failing row is counted as skipped and its message kept (up to
// MaxErrorMessages); it never aborts the batch.
//
// # Example Usage
//
//	pipeline := importers.NewPipeline(repo, googleBooks, importers.Config{Workers: 4})
//	result, err := pipeline.ImportFile(ctx, userID, "livraddict.csv", data)
//	if errors.Is(err, importers.ErrNoRows) {
//		// reject the upload
//	}
//	fmt.Println(result.Summary())
package importers
