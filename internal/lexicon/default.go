package lexicon

// Default returns the built-in Hinglish lexicon for the PM-KUSUM solar pump
// outreach calls.
func Default() *Lexicon {
	return New(map[Category][]string{
		Positive:   {"haan", "achha", "theek", "zaroor", "batayiye", "details", "chahiye", "interested"},
		Negative:   {"nahi", "mat", "band", "pareshan", "time nahi", "dhokha", "problem"},
		Neutral:    {"dekhunga", "sochenge", "pata nahi", "maybe", "shayad"},
		Confused:   {"samajh nahi", "kya bol rahe", "ye kya", "kaise", "simple mein"},
		Interested: {"details", "batao", "kaise milega", "process kya", "zaroor", "interested"},
		Objection:  {"kitne ka", "free mein", "paisa", "eligible", "documents", "process"},
		Unclear:    {"samajh nahi", "kya bol rahe", "simple mein"},
		Reschedule: {"dobara call", "baad mein call"},
		Rejection:  {"nahi chahiye", "band karo", "interested nahi"},

		ObjectionCost:        {"kitne paise", "paisa", "cost"},
		ObjectionFree:        {"free mein", "bilkul free"},
		ObjectionTrust:       {"kaun ho", "sach hai", "government"},
		ObjectionEligibility: {"eligible", "qualification"},
		ObjectionTime:        {"time nahi", "busy"},

		AskIdentity:      {"kaun ho", "government", "identity"},
		AskComprehension: {"kya", "samajh nahi", "explain", "simple"},
		AskCost:          {"kitne", "paisa", "cost", "paise"},
		AskEligibility:   {"eligible", "qualify", "documents"},
		AskProcess:       {"process", "kaise", "steps"},
		AskLater:         {"time nahi", "busy", "baad"},
		ClosingInterest:  {"interested", "chahiye", "lagwana"},

		EndRejection: {"nahi chahiye", "interested nahi", "band karo", "problem hai"},
		EndAgreement: {"haan kar do", "register karo", "proceed", "lagwana hai"},
		EndLater:     {"baad mein call", "time nahi", "busy hun"},
	})
}
