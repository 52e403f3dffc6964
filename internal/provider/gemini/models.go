package gemini

// Gemini generateContent/embedContent wire structures.

type generateRequest struct {
	SystemInstruction *wireContent     `json:"systemInstruction,omitempty"`
	Contents          []wireContent    `json:"contents"`
	Tools             []wireTools      `json:"tools,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"` // "user" | "model"
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text         string            `json:"text,omitempty"`
	FileData     *fileData         `json:"fileData,omitempty"`
	FunctionCall *functionCall     `json:"functionCall,omitempty"`
	FunctionResp *functionResponse `json:"functionResponse,omitempty"`
}

type fileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type functionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type wireTools struct {
	FunctionDeclarations []functionDeclaration `json:"functionDeclarations"`
}

type functionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"topP,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates    []candidate   `json:"candidates"`
	UsageMetadata usageMetadata `json:"usageMetadata"`
	ModelVersion  string        `json:"modelVersion"`
}

type candidate struct {
	Content      wireContent `json:"content"`
	FinishReason string      `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type embedRequest struct {
	Requests []embedItem `json:"requests"`
}

type embedItem struct {
	Model   string      `json:"model"`
	Content wireContent `json:"content"`
}

type embedResponse struct {
	Embeddings []struct {
		Values []float64 `json:"values"`
	} `json:"embeddings"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
