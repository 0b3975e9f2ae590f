package model

// ================ Config ================

type ChatModelConfig struct {
	Model       string  `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"GEMINI_MAX_TOKENS" default:"4096"`
	Temperature float32 `envconfig:"GEMINI_TEMPERATURE" default:"0.3"`
}

type OrchestratorConfig struct {
	// MaxTurns bounds the number of chat round-trips per query. When the
	// model is still requesting tools on the last turn the loop stops and
	// reports an incomplete answer instead of issuing another chat call.
	MaxTurns int `envconfig:"ORCHESTRATOR_MAX_TURNS" default:"10"`
}

type PromptConfig struct {
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"Navigator"`
}

type AgentsConfig struct {
	WikidataURL    string `envconfig:"WIKIDATA_SPARQL_URL" default:"https://query.wikidata.org/sparql"`
	WikipediaURL   string `envconfig:"WIKIPEDIA_SUMMARY_URL" default:"https://en.wikipedia.org/api/rest_v1/page/summary"`
	NominatimURL   string `envconfig:"NOMINATIM_URL" default:"https://nominatim.openstreetmap.org/search"`
	OpenMeteoURL   string `envconfig:"OPEN_METEO_URL" default:"https://api.open-meteo.com/v1/forecast"`
	TimeoutSeconds int    `envconfig:"AGENT_TIMEOUT_SECONDS" default:"10"`
	UserAgent      string `envconfig:"AGENT_USER_AGENT" default:"knowledge-navigator/1.0"`
}

type ConversationConfig struct {
	// MaxConversations caps how many conversations the store retains.
	// The least-recently-updated ones beyond the cap are evicted.
	MaxConversations int    `envconfig:"CONVERSATION_MAX_COUNT" default:"100"`
	TitleMaxChars    int    `envconfig:"CONVERSATION_TITLE_MAX_CHARS" default:"50"`
	TTL              string `envconfig:"CONVERSATION_TTL" default:"24h"`
}

type ServerConfig struct {
	Listen       string `envconfig:"SERVER_LISTEN" default:":8080"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`
}
