package llm

// Persona is the requested response style, shared by the query analyzer,
// the response strategist's inputs, and the prompt builder.
type Persona string

const (
	PersonaStandard  Persona = "standard"
	PersonaAcademic  Persona = "academic"
	PersonaExecutive Persona = "executive"
	PersonaELI5      Persona = "eli5"
	PersonaTechnical Persona = "technical"
	PersonaDebate    Persona = "debate"
	PersonaLegal     Persona = "legal"
	PersonaMedical   Persona = "medical"
	PersonaCreative  Persona = "creative"
)

// PersonaParams is the fixed (max_tokens, temperature, emphasis) triple for
// a persona. The table is a single system constant, never overridden by
// configuration.
type PersonaParams struct {
	MaxTokens   int
	Temperature float64
	Emphasis    string
}

var personaTable = map[Persona]PersonaParams{
	PersonaStandard:  {MaxTokens: 100, Temperature: 0.3, Emphasis: "balanced, concise"},
	PersonaAcademic:  {MaxTokens: 200, Temperature: 0.2, Emphasis: "formal, citation-heavy"},
	PersonaExecutive: {MaxTokens: 80, Temperature: 0.1, Emphasis: "bullets, key takeaways"},
	PersonaELI5:      {MaxTokens: 120, Temperature: 0.4, Emphasis: "simple language, analogies"},
	PersonaTechnical: {MaxTokens: 250, Temperature: 0.2, Emphasis: "precise, formulas/code allowed"},
	PersonaDebate:    {MaxTokens: 180, Temperature: 0.3, Emphasis: "present all viewpoints"},
	PersonaLegal:     {MaxTokens: 180, Temperature: 0.2, Emphasis: "careful, hedged"},
	PersonaMedical:   {MaxTokens: 180, Temperature: 0.2, Emphasis: "careful, hedged"},
	PersonaCreative:  {MaxTokens: 160, Temperature: 0.5, Emphasis: "expressive"},
}

// ParamsFor returns the fixed params for persona, defaulting to
// PersonaStandard for an unrecognized value.
func ParamsFor(p Persona) PersonaParams {
	if params, ok := personaTable[p]; ok {
		return params
	}
	return personaTable[PersonaStandard]
}

// ValidPersona reports whether p is one of the nine recognized personas.
func ValidPersona(p Persona) bool {
	_, ok := personaTable[p]
	return ok
}
