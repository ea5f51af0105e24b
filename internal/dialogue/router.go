// Package dialogue runs one simulated call: it opens with the current
// script, routes each counterpart reply to the agent's next line and decides
// when the call is over.
package dialogue

import (
	"strings"

	"github.com/apresai/callcoach/internal/lexicon"
)

// Agent lines used by the default route table.
const (
	TrustResponse       = "Ji haan, main government ki taraf se authorized hun. Mera naam Raj hai aur main PM-KUSUM scheme coordinator hun. Aap PM Modi ji ke website pe bhi check kar sakte hain."
	SimpleResponse      = "Main aapko simple mein samjhata hun. Solar pump ka matlab ye hai ki aapko bijli ki jarurat nahi hogi. Sun ki energy se pump chalega. Bilkul free energy."
	CostResponse        = "Bilkul sahi sawaal! Dekho ji, agar pump ki total cost 1 lakh hai, to aapko sirf 10,000 rupaye dene honge. Baaki 90,000 government degi. Monthly installment bhi available hai."
	EligibilityResponse = "Eligibility bilkul simple hai. Bas aapke paas khet hona chahiye aur aap farmer hona chahiye. Documents sirf Aadhaar aur khet ke kagaz chahiye. Koi extra formality nahi."
	ProcessResponse     = "Process bahut aasan hai. Pehle online application submit karni hai, phir 15 din mein approval. Uske baad 1 mahine mein installation. Total 45 din ka kaam."
	LaterResponse       = "Koi baat nahi ji. Main aapko WhatsApp pe details bhej deta hun. Sirf 2 minute ka video hai. Aap free time mein dekh sakte hain. Aur koi question ho to direct call kar sakte hain."
	ClosingRegister     = "Bahut achha ji! Main aapka naam register kar deta hun aur officer aapse 2 din mein contact karenge. Aapko sirf form fill karna hai."
	ClosingFollowUp     = "Toh sir, kya aap sochenge? Main aapka number note kar leta hun. Officer aapse detail mein baat karenge."
	OpenPrompt          = "Aur koi questions hain aapke? Main sab kuch detail mein bata sakta hun. Cost, process, documents - jo bhi jaanna ho."
)

// Route binds a trigger category to the agent line it produces.
type Route struct {
	Trigger  lexicon.Category
	Response string
}

// DefaultRoutes is the route table in priority order.
func DefaultRoutes() []Route {
	return []Route{
		{Trigger: lexicon.AskIdentity, Response: TrustResponse},
		{Trigger: lexicon.AskComprehension, Response: SimpleResponse},
		{Trigger: lexicon.AskCost, Response: CostResponse},
		{Trigger: lexicon.AskEligibility, Response: EligibilityResponse},
		{Trigger: lexicon.AskProcess, Response: ProcessResponse},
		{Trigger: lexicon.AskLater, Response: LaterResponse},
	}
}

// Router picks the agent's next line. The first route whose trigger set
// appears in the reply wins. Replies that match nothing get a closing line
// near the end of the call and the open prompt before that.
type Router struct {
	lex         *lexicon.Lexicon
	routes      []Route
	closingFrom int
}

// NewRouter builds a router for calls of maxTurns turns. Closing lines are
// used once the reply being answered belongs to turn maxTurns-1 or later.
func NewRouter(lex *lexicon.Lexicon, routes []Route, maxTurns int) *Router {
	if lex == nil {
		lex = lexicon.Default()
	}
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &Router{lex: lex, routes: routes, closingFrom: maxTurns - 1}
}

// Route returns the agent line answering reply, the counterpart utterance of
// turn turnIndex (1-based).
func (r *Router) Route(reply string, turnIndex int) string {
	reply = strings.ToLower(reply)
	for _, rt := range r.routes {
		if r.lex.Any(rt.Trigger, reply) {
			return rt.Response
		}
	}
	if turnIndex >= r.closingFrom {
		if r.lex.Any(lexicon.ClosingInterest, reply) {
			return ClosingRegister
		}
		return ClosingFollowUp
	}
	return OpenPrompt
}
