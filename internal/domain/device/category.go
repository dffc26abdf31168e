// Package device maps free-text product names onto the normalized device
// categories used for fulfillment routing.
package device

import (
	"context"
	"regexp"
	"strings"
)

// Category is a normalized device category. The zero value means unknown.
type Category string

const (
	CategoryUnknown        Category = ""
	CategoryTVs            Category = "TVs"
	CategoryHomeAppliances Category = "Home Appliances"
	CategoryLaptops        Category = "Laptops"
	CategoryMobilePhones   Category = "Mobile Phones"
	CategoryTablets        Category = "Tablets"
	CategoryCameras        Category = "Cameras"
	CategoryGamingConsoles Category = "Gaming Consoles"
	CategoryAudio          Category = "Audio"
	CategoryWearables      Category = "Wearables"
)

func (c Category) String() string {
	return string(c)
}

// IsKnown is false for the unknown category
func (c Category) IsKnown() bool {
	return c != CategoryUnknown
}

// synonyms maps lower-cased catalog categories onto the normalized vocabulary
var synonyms = map[string]Category{
	"tv":               CategoryTVs,
	"tvs":              CategoryTVs,
	"television":       CategoryTVs,
	"televisions":      CategoryTVs,
	"smart tv":         CategoryTVs,
	"smart tvs":        CategoryTVs,
	"brown goods":      CategoryTVs,
	"home appliances":  CategoryHomeAppliances,
	"home appliance":   CategoryHomeAppliances,
	"white goods":      CategoryHomeAppliances,
	"washing machine":  CategoryHomeAppliances,
	"washing machines": CategoryHomeAppliances,
	"refrigerator":     CategoryHomeAppliances,
	"refrigerators":    CategoryHomeAppliances,
	"fridge freezer":   CategoryHomeAppliances,
	"dishwasher":       CategoryHomeAppliances,
	"dishwashers":      CategoryHomeAppliances,
	"oven":             CategoryHomeAppliances,
	"ovens":            CategoryHomeAppliances,
	"tumble dryer":     CategoryHomeAppliances,
	"laptop":           CategoryLaptops,
	"laptops":          CategoryLaptops,
	"notebook":         CategoryLaptops,
	"notebooks":        CategoryLaptops,
	"computers":        CategoryLaptops,
	"mobile phone":     CategoryMobilePhones,
	"mobile phones":    CategoryMobilePhones,
	"smartphone":       CategoryMobilePhones,
	"smartphones":      CategoryMobilePhones,
	"phones":           CategoryMobilePhones,
	"tablet":           CategoryTablets,
	"tablets":          CategoryTablets,
	"camera":           CategoryCameras,
	"cameras":          CategoryCameras,
	"photography":      CategoryCameras,
	"gaming console":   CategoryGamingConsoles,
	"gaming consoles":  CategoryGamingConsoles,
	"games consoles":   CategoryGamingConsoles,
	"consoles":         CategoryGamingConsoles,
	"audio":            CategoryAudio,
	"headphones":       CategoryAudio,
	"wearables":        CategoryWearables,
	"smartwatch":       CategoryWearables,
}

type keywordSet struct {
	category Category
	words    []string
	patterns []*regexp.Regexp
}

// keywordSets are checked in order; the first category with a hit wins.
// Consoles precede TVs ("Switch OLED"), tablets and wearables precede phones
// ("Galaxy Tab", "Galaxy Watch").
var keywordSets = []keywordSet{
	{
		category: CategoryGamingConsoles,
		words:    []string{"playstation", "ps4", "ps5", "xbox", "nintendo", "steam deck", "console"},
	},
	{
		category: CategoryTVs,
		words:    []string{"tv", "television", "bravia", "oled", "qled", "nanocell", "smart tv", "uhd", "4k tv", "8k"},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\bx\d{2}[a-z]?\b`),         // Sony X95, X90J
			regexp.MustCompile(`\bkd-?\d{2}`),              // Sony KD-55...
			regexp.MustCompile(`\bq[enu]\d{2}`),            // Samsung QE55...
			regexp.MustCompile(`\boled\d{2}`),              // LG OLED65...
			regexp.MustCompile(`\b\d{2}(?:in\b|inch\b|")`), // 55in, 65"
		},
	},
	{
		category: CategoryHomeAppliances,
		words:    []string{"washing", "washer", "dryer", "tumble", "fridge", "freezer", "refrigerator", "dishwasher", "oven", "cooker", "hob", "microwave", "appliance"},
	},
	{
		category: CategoryTablets,
		words:    []string{"ipad", "tablet", "galaxy tab", "surface go", "kindle", "fire hd", "lenovo tab"},
	},
	{
		category: CategoryWearables,
		words:    []string{"watch", "fitbit", "garmin"},
	},
	{
		category: CategoryLaptops,
		words:    []string{"laptop", "macbook", "notebook", "chromebook", "thinkpad", "xps", "zenbook", "vivobook", "spectre", "surface laptop", "ideapad"},
	},
	{
		category: CategoryMobilePhones,
		words:    []string{"iphone", "galaxy", "pixel", "oneplus", "xiaomi", "redmi", "huawei", "motorola", "nokia", "phone", "smartphone", "mobile"},
	},
	{
		category: CategoryCameras,
		words:    []string{"camera", "dslr", "mirrorless", "gopro", "canon eos", "nikon", "fujifilm", "lumix", "lens"},
	},
	{
		category: CategoryAudio,
		words:    []string{"headphones", "earbuds", "airpods", "soundbar", "speaker"},
	},
}

// CatalogLookup finds the catalog category for a model name. A miss returns ("", nil).
type CatalogLookup interface {
	LookupCategory(ctx context.Context, modelName string) (string, error)
}

// Logger is the minimal logging dependency of the resolver
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Resolver resolves a product name to a Category. It never fails: lookup
// errors degrade to keyword matching and then to unknown.
type Resolver struct {
	catalog CatalogLookup
	logger  Logger
}

// NewResolver creates a resolver; catalog and logger may be nil
func NewResolver(catalog CatalogLookup, logger Logger) *Resolver {
	return &Resolver{catalog: catalog, logger: logger}
}

// Resolve returns the normalized category for productName
func (r *Resolver) Resolve(ctx context.Context, productName string) Category {
	name := strings.TrimSpace(productName)
	if name == "" {
		return CategoryUnknown
	}

	if r.catalog != nil {
		raw, err := r.catalog.LookupCategory(ctx, name)
		if err != nil {
			if r.logger != nil {
				r.logger.Error("Device catalog lookup failed, falling back to keywords",
					"product_name", name,
					"error", err,
				)
			}
		} else if c := Normalize(raw); c.IsKnown() {
			return c
		}
	}

	return MatchKeywords(name)
}

// Normalize maps a catalog category through the synonym table.
// Categories already in the vocabulary pass through.
func Normalize(raw string) Category {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return CategoryUnknown
	}
	if c, ok := synonyms[key]; ok {
		return c
	}
	return CategoryUnknown
}

// MatchKeywords classifies a product name by curated keywords
func MatchKeywords(productName string) Category {
	text := " " + strings.ToLower(productName) + " "
	for _, set := range keywordSets {
		for _, word := range set.words {
			if containsWord(text, word) {
				return set.category
			}
		}
		for _, p := range set.patterns {
			if p.MatchString(text) {
				return set.category
			}
		}
	}
	return CategoryUnknown
}

// containsWord matches word on non-alphanumeric boundaries so "tv" does not hit "ltv"
func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		if !isAlnum(text[start-1]) && (end >= len(text) || !isAlnum(text[end])) {
			return true
		}
		idx = start + 1
	}
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
