package knowledge

// Built-in tables for offline use. The scores are mock values, not CADD output.

var builtinGenes = []MetabolizerGene{
	{Symbol: "CYP2C19", CYPFamily: "CYP2C19", Drugs: []string{"clopidogrel", "omeprazole", "escitalopram"}},
	{Symbol: "CYP2C9", CYPFamily: "CYP2C9", Drugs: []string{"warfarin", "nsaid"}},
	{Symbol: "CYP2D6", CYPFamily: "CYP2D6", Drugs: []string{"codeine", "tramadol", "metoprolol"}},
	{Symbol: "CYP3A4", CYPFamily: "CYP3A4", Drugs: []string{"simvastatin", "atorvastatin"}},
	{Symbol: "TPMT", CYPFamily: "TPMT", Drugs: []string{"azathioprine", "6-mercaptopurine"}},
	{Symbol: "VKORC1", CYPFamily: "VKORC1", Drugs: []string{"warfarin"}},
}

var builtinClinical = map[string]ClinicalEntry{
	"chr10:94761930:G>A": {Significance: "pathogenic", ID: "VCV000000001"},
	"chr6:161006172:G>A": {Significance: "likely_pathogenic", ID: "VCV000000002"},
	"chr19:41307769:C>T": {Significance: "benign", ID: "VCV000000003"},
}

var builtinScores = map[string]float64{
	"chr10:94761930:G>A": 28.5,
	"chr6:161006172:G>A": 32.1,
	"chr19:41307769:C>T": 5.2,
}

// Default returns the built-in reference tables.
func Default() *Knowledge {
	return New(builtinGenes, builtinClinical, builtinScores)
}
