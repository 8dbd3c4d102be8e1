package pricing

// defaultEntries maps model id prefixes to USD rates per million tokens.
// More specific prefixes win over shorter ones, so the bare "claude" entry
// only catches ids no other Claude entry covers.
var defaultEntries = map[string]Rates{
	// Anthropic
	"claude-opus-4":     {InputPerMTok: 15.00, OutputPerMTok: 75.00, CacheReadPerMTok: 1.50, CacheWritePerMTok: 3.75},
	"claude-4-opus":     {InputPerMTok: 15.00, OutputPerMTok: 75.00, CacheReadPerMTok: 1.50, CacheWritePerMTok: 3.75},
	"claude-3-opus":     {InputPerMTok: 15.00, OutputPerMTok: 75.00, CacheReadPerMTok: 1.50, CacheWritePerMTok: 3.75},
	"claude-sonnet-4":   {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75},
	"claude-4-sonnet":   {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75},
	"claude-4-5":        {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75},
	"claude-3-5-sonnet": {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75},
	"claude-3.5-sonnet": {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75},
	"claude-3-sonnet":   {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75},
	"claude-haiku-4":    {InputPerMTok: 0.80, OutputPerMTok: 4.00, CacheReadPerMTok: 0.08, CacheWritePerMTok: 1.00},
	"claude-4-haiku":    {InputPerMTok: 0.80, OutputPerMTok: 4.00, CacheReadPerMTok: 0.08, CacheWritePerMTok: 1.00},
	"claude-3-5-haiku":  {InputPerMTok: 0.80, OutputPerMTok: 4.00, CacheReadPerMTok: 0.08, CacheWritePerMTok: 1.00},
	"claude-3.5-haiku":  {InputPerMTok: 0.80, OutputPerMTok: 4.00, CacheReadPerMTok: 0.08, CacheWritePerMTok: 1.00},
	"claude-3-haiku":    {InputPerMTok: 0.25, OutputPerMTok: 1.25, CacheReadPerMTok: 0.03, CacheWritePerMTok: 0.31},
	// Unknown Claude variants bill at Sonnet rates.
	"claude": {InputPerMTok: 3.00, OutputPerMTok: 15.00, CacheReadPerMTok: 0.30, CacheWritePerMTok: 3.75},

	// OpenAI
	"gpt-5":       {InputPerMTok: 10.00, OutputPerMTok: 40.00, CacheReadPerMTok: 2.50, CacheWritePerMTok: 10.00},
	"o3-mini":     {InputPerMTok: 1.10, OutputPerMTok: 4.40, CacheReadPerMTok: 0.275, CacheWritePerMTok: 1.10},
	"o4-mini":     {InputPerMTok: 1.10, OutputPerMTok: 4.40, CacheReadPerMTok: 0.275, CacheWritePerMTok: 1.10},
	"o3":          {InputPerMTok: 10.00, OutputPerMTok: 40.00, CacheReadPerMTok: 2.50, CacheWritePerMTok: 10.00},
	"o4":          {InputPerMTok: 10.00, OutputPerMTok: 40.00, CacheReadPerMTok: 2.50, CacheWritePerMTok: 10.00},
	"gpt-4o-mini": {InputPerMTok: 0.15, OutputPerMTok: 0.60, CacheReadPerMTok: 0.075, CacheWritePerMTok: 0.15},
	"gpt-4o":      {InputPerMTok: 2.50, OutputPerMTok: 10.00, CacheReadPerMTok: 1.25, CacheWritePerMTok: 2.50},
	"gpt-4":       {InputPerMTok: 30.00, OutputPerMTok: 60.00, CacheReadPerMTok: 7.50, CacheWritePerMTok: 30.00},
	"gpt-3.5":     {InputPerMTok: 0.50, OutputPerMTok: 1.50, CacheReadPerMTok: 0.50, CacheWritePerMTok: 0.50},

	// Moonshot
	"kimi":     {InputPerMTok: 0.15, OutputPerMTok: 2.50, CacheReadPerMTok: 0.04, CacheWritePerMTok: 0.15},
	"moonshot": {InputPerMTok: 0.15, OutputPerMTok: 2.50, CacheReadPerMTok: 0.04, CacheWritePerMTok: 0.15},

	// Google
	"gemini-2.0-flash": {InputPerMTok: 0.10, OutputPerMTok: 0.40, CacheReadPerMTok: 0.025, CacheWritePerMTok: 0.10},
	"gemini-2":         {InputPerMTok: 1.25, OutputPerMTok: 5.00, CacheReadPerMTok: 0.31, CacheWritePerMTok: 1.25},
	"gemini-1.5-pro":   {InputPerMTok: 1.25, OutputPerMTok: 5.00, CacheReadPerMTok: 0.31, CacheWritePerMTok: 1.25},
	"gemini-1.5-flash": {InputPerMTok: 0.075, OutputPerMTok: 0.30, CacheReadPerMTok: 0.02, CacheWritePerMTok: 0.075},
}
