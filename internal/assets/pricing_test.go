package assets

import "testing"

func TestDetectCategory(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"invisalign keyword", "How much does Invisalign cost?", CategoryInvisalign},
		{"aligner synonym", "I was quoted for clear aligners elsewhere", CategoryInvisalign},
		{"implant keyword", "thinking about an implant for my molar", CategoryImplants},
		{"root canal phrase", "do I really need a root canal", CategoryRootCanal},
		{"wisdom tooth", "my wisdom tooth is killing me", CategoryExtraction},
		{"orthodontics", "my daughter needs orthodontic work", CategoryBraces},
		{"gum disease", "the dentist mentioned gum disease", CategoryGumTreatment},
		{"no match", "what are your opening hours", CategoryGeneral},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectCategory(tc.text)
			if got != tc.want {
				t.Fatalf("DetectCategory(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestDetectCategories(t *testing.T) {
	got := DetectCategories("should I get veneers or just whitening, maybe braces too", 2)
	if len(got) != 2 || got[0] != CategoryVeneer || got[1] != CategoryWhitening {
		t.Fatalf("DetectCategories = %v, want [veneer whitening]", got)
	}

	if got := DetectCategories("what are your opening hours", 2); got != nil {
		t.Fatalf("DetectCategories = %v, want nil", got)
	}

	// Repeated keywords for one procedure count once.
	got = DetectCategories("whitening or bleaching, which whitens better?", 3)
	if len(got) != 1 || got[0] != CategoryWhitening {
		t.Fatalf("DetectCategories = %v, want [whitening]", got)
	}
}

func TestCostAndCoverageDefaults(t *testing.T) {
	if got := CostCents("unheard_of"); got != 250000 {
		t.Fatalf("default cost = %d, want 250000", got)
	}
	if got := Coverage("unheard_of"); got != 0.5 {
		t.Fatalf("default coverage = %v, want 0.5", got)
	}
	if got := CostCents(CategoryBraces); got != 500000 {
		t.Fatalf("braces cost = %d, want 500000", got)
	}
	if got := Coverage(CategoryCleaning); got != 1.0 {
		t.Fatalf("cleaning coverage = %v, want 1.0", got)
	}
	if got := Coverage(CategoryInvisalign); got != 0.0 {
		t.Fatalf("invisalign coverage = %v, want 0.0", got)
	}
}

func TestSplitCost(t *testing.T) {
	insurance, patient := SplitCost(300000, 0.5)
	if insurance != 150000 || patient != 150000 {
		t.Fatalf("SplitCost(300000, 0.5) = %d, %d, want 150000, 150000", insurance, patient)
	}

	insurance, patient = SplitCost(450000, 0.0)
	if insurance != 0 || patient != 450000 {
		t.Fatalf("SplitCost(450000, 0.0) = %d, %d, want 0, 450000", insurance, patient)
	}

	insurance, patient = SplitCost(15000, 1.0)
	if insurance != 15000 || patient != 0 {
		t.Fatalf("SplitCost(15000, 1.0) = %d, %d, want 15000, 0", insurance, patient)
	}
}

func TestMonthlyCents(t *testing.T) {
	cases := []struct {
		patient int64
		months  int
		want    int64
	}{
		{150000, 12, 12500},
		{150000, 24, 6250},
		{150000, 36, 4167},
		{100000, 36, 2778},
		{500, 0, 500},
	}

	for _, tc := range cases {
		got := MonthlyCents(tc.patient, tc.months)
		if got != tc.want {
			t.Fatalf("MonthlyCents(%d, %d) = %d, want %d", tc.patient, tc.months, got, tc.want)
		}
	}
}
