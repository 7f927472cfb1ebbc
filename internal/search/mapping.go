package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for tag documents.
//
// Names use the simple analyzer (letter tokens, lowercased, no stemming)
// so prefix and fuzzy terms line up with what the user typed.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = simple.Name

	docMapping := bleve.NewDocumentMapping()

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = simple.Name
	nameFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	nameLvFieldMapping := bleve.NewTextFieldMapping()
	nameLvFieldMapping.Analyzer = simple.Name
	nameLvFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("name_lv", nameLvFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("slug", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("level", keywordFieldMapping)

	indexMapping.DefaultMapping = docMapping

	return indexMapping
}
