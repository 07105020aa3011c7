package ai

// ConceptTypes defines the valid categories for extracted concepts.
// These types are used by concept extractors to classify semantic entities.
var ConceptTypes = []string{
	"abstract_concept",
	"activity",
	"animal",
	"art",
	"building",
	"event",
	"field_of_study",
	"law",
	"man_made_object",
	"measurement",
	"method",
	"natural_object",
	"occupation",
	"organization",
	"person",
	"phenomenon",
	"place",
	"plant",
	"software",
	"substance",
	"technology",
	"theory",
	"time",
	"tool",
	"work",
}
