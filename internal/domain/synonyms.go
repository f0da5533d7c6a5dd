package domain

import "regexp"

// SynonymTableVersion identifies the label vocabulary below. Bump it whenever
// an entry changes so cached normalized catalogs are invalidated.
const SynonymTableVersion = "2025.2"

// LabelPattern maps labels matching Pattern to Nutrient. Patterns are tried
// in slice order, so more specific labels ("of which sugars") come before
// the broader ones ("carbohydrate").
type LabelPattern struct {
	Nutrient Nutrient
	Pattern  *regexp.Regexp
}

// LabelVocabulary is the tagged mapping from nutrition label text to the
// canonical nutrient set. Keys are folded labels: lowercase, diacritics
// removed, punctuation stripped, single spaces.
type LabelVocabulary struct {
	Version  string
	Exact    map[string]Nutrient
	Patterns []LabelPattern
	// Ignore holds substrings of labels that are never nutrients we model
	// (vitamins, minerals, reference intakes).
	Ignore []string
	// SodiumLabels are folded labels stating sodium rather than salt.
	SodiumLabels map[string]bool
}

// DefaultVocabulary covers English, Italian, German, French and Spanish
// labels plus common abbreviations.
var DefaultVocabulary = LabelVocabulary{
	Version: SynonymTableVersion,
	Exact: map[string]Nutrient{
		// energy
		"energy": NutrientEnergy, "energy kcal": NutrientEnergy, "calories": NutrientEnergy,
		"kcal": NutrientEnergy, "energia": NutrientEnergy, "valore energetico": NutrientEnergy,
		"energia kcal": NutrientEnergy, "brennwert": NutrientEnergy, "energie": NutrientEnergy,
		"valeur energetique": NutrientEnergy, "valor energetico": NutrientEnergy, "energy kj": NutrientEnergy,
		// fat
		"fat": NutrientFat, "total fat": NutrientFat, "grassi": NutrientFat, "fett": NutrientFat,
		"matieres grasses": NutrientFat, "grasas": NutrientFat, "lipidi": NutrientFat, "lipides": NutrientFat,
		// saturated fat
		"saturated fat": NutrientSaturatedFat, "saturates": NutrientSaturatedFat,
		"of which saturates": NutrientSaturatedFat, "acidi grassi saturi": NutrientSaturatedFat,
		"di cui acidi grassi saturi": NutrientSaturatedFat, "di cui saturi": NutrientSaturatedFat,
		"gesattigte fettsauren": NutrientSaturatedFat, "davon gesattigte fettsauren": NutrientSaturatedFat,
		"acides gras satures": NutrientSaturatedFat, "dont acides gras satures": NutrientSaturatedFat,
		"grasas saturadas": NutrientSaturatedFat, "sat fat": NutrientSaturatedFat,
		// carbohydrate
		"carbohydrate": NutrientCarbohydrate, "carbohydrates": NutrientCarbohydrate,
		"total carbohydrate": NutrientCarbohydrate, "carbs": NutrientCarbohydrate,
		"carboidrati": NutrientCarbohydrate, "kohlenhydrate": NutrientCarbohydrate,
		"glucides": NutrientCarbohydrate, "hidratos de carbono": NutrientCarbohydrate,
		// sugars
		"sugars": NutrientSugars, "sugar": NutrientSugars, "of which sugars": NutrientSugars,
		"total sugars": NutrientSugars, "zuccheri": NutrientSugars, "di cui zuccheri": NutrientSugars,
		"zucker": NutrientSugars, "davon zucker": NutrientSugars, "sucres": NutrientSugars,
		"dont sucres": NutrientSugars, "azucares": NutrientSugars,
		// fiber
		"fiber": NutrientFiber, "fibre": NutrientFiber, "dietary fiber": NutrientFiber,
		"fibre alimentari": NutrientFiber, "fibra": NutrientFiber, "fibre alimentaire": NutrientFiber,
		"ballaststoffe": NutrientFiber, "fibres alimentaires": NutrientFiber, "fibra alimentaria": NutrientFiber,
		// protein
		"protein": NutrientProtein, "proteins": NutrientProtein, "proteine": NutrientProtein,
		"eiweiss": NutrientProtein, "proteines": NutrientProtein, "proteinas": NutrientProtein,
		// salt
		"salt": NutrientSalt, "sale": NutrientSalt, "salz": NutrientSalt, "sel": NutrientSalt,
		"sal": NutrientSalt, "sodium": NutrientSalt, "sodio": NutrientSalt, "natrium": NutrientSalt,
	},
	Patterns: []LabelPattern{
		{NutrientSaturatedFat, regexp.MustCompile(`satur|gesattigt`)},
		{NutrientSugars, regexp.MustCompile(`zuccher|sugar|zucker|sucre|azucar`)},
		{NutrientFat, regexp.MustCompile(`grass|\bfat\b|fett|lipid|grasa`)},
		{NutrientCarbohydrate, regexp.MustCompile(`carboidrat|carbohydrat|kohlenhydrat|glucid|hidratos`)},
		{NutrientEnergy, regexp.MustCompile(`energ|kcal|\bkj\b|calori|brennwert`)},
		{NutrientProtein, regexp.MustCompile(`protei|eiweiss`)},
		{NutrientFiber, regexp.MustCompile(`fib[er]|ballaststoff`)},
		{NutrientSalt, regexp.MustCompile(`\bsal[etz]?\b|sodi|natrium`)},
	},
	Ignore: []string{
		"vitamin", "vit ", "calcio", "calcium", "ferro", "iron", "zinco", "zinc", "iodio", "iodine",
		"magnesio", "magnesium", "potassio", "potassium", "fosforo", "phosphorus", "niacin",
		"biotin", "riboflavin", "tiamin", "thiamin", "folic", "folico", "pantoten", "colina",
		"vnr", "nrv", "reference intake", "riferimento", "porzion", "polioli", "polyols",
		"omega", "cholesterol", "colesterolo", "trans", "monoinsatur", "polinsatur", "monounsatur",
		"polyunsatur", "starch", "amido",
	},
	SodiumLabels: map[string]bool{"sodium": true, "sodio": true, "natrium": true},
}
