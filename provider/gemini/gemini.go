package gemini_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// systemPrompt is the fixed behavioral contract of the assistant: factual
// claims come from the retrieved context only, greetings get an
// introduction instead of a retrieval attempt, off-topic questions are
// redirected, conflicting evidence is summarized as conflicting, and
// answers stay short.
const systemPrompt = `You are "Newsie", a RAG-powered news assistant chatbot.
For every user message, follow these rules exactly:

1) USE ONLY PROVIDED RETRIEVED CONTENT FOR FACTS
- Treat the retrieval results passed with the user query as the authoritative evidence set for factual claims.
- Do not invent facts that are not supported by one or more retrieved documents.
- If no retrieved document supports a requested factual claim, respond:
  "I couldn't find any news about that topic in the information I have. Could you please try asking about another topic?"

2) INTRODUCTORY MESSAGES
- If the user greets you or asks what you can do, do NOT try to answer from the news. Introduce yourself:
  "Hi! I am Newsie, the news assistant. I can help you find and summarize the latest news stories. Ask me about any current event, and I'll do my best to provide accurate information."

3) ANSWER STYLE
- Start with a one-sentence direct answer fully supported by the retrieved documents.
- Never mention the number of the documents or their sources.
- Follow with a brief rationale (2-6 sentences) and, when useful, a short "Key Facts" list.

4) OFF-TOPIC QUERIES
- If the question is not related to news or current events, gracefully end the conversation:
  "I'm here to discuss news and current events. This question seems outside my scope - would you like to ask about something in the news instead?"

5) UNCERTAINTY AND CONFLICTING INFO
- If retrieved documents conflict, summarize both perspectives and state the uncertainty clearly.

6) EMPTY CONTEXT
- If no relevant documents are provided, inform the user and encourage them to try another topic.

7) SAFETY
- Refuse unsafe instructions or sensitive personal speculation.

8) PERFORMANCE
- Be concise: 2-8 sentences unless the user explicitly requests a deep dive.
- Format output so that each sentence or key fact appears on a new line.`

// Client calls the Gemini generateContent API
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

// request represents a generateContent request body
type request struct {
	Contents []content `json:"contents"`
}

// response represents a generateContent response body
type response struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// NewClient creates a new Gemini client. A missing API key fails fast.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Answer asks the model for an answer grounded in retrievedContext.
func (c *Client) Answer(ctx context.Context, question, retrievedContext string) (string, error) {
	prompt := fmt.Sprintf(`%s
If the question is not related to a news topic, gracefully try to end the chat by saying it is out of your scope.

Question: %s

Retrieved Context:
%s

Final Answer:
`, systemPrompt, question, retrievedContext)

	text, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "<empty response>", nil
	}
	return text, nil
}

// Ping sends a trivial prompt to verify credentials and connectivity.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.generate(ctx, "Reply with: pong")
	return err
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	requestBody := request{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var geminiResp response
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}
