// Package scrappey provides a client for the Scrappey web scraping API.
//
// Every call is a single JSON command POSTed to the API endpoint. The helpers
// fill in the "cmd" field and merge caller options on top of it.
//
// Basic usage:
//
//	client := scrappey.New("your-api-key")
//	resp, err := client.Get("https://example.com", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(resp.Solution().StatusCode())
//
// With options:
//
//	client := scrappey.New(apiKey,
//	    scrappey.WithTimeout(2*time.Minute),
//	    scrappey.WithAPIProxy("http://proxy.example.com:8080"),
//	)
//	resp, err := client.Get("https://example.com", scrappey.Payload{
//	    "cloudflareBypass": true,
//	    "premiumProxy":     true,
//	})
//
// Sessions are opaque tokens held by the caller:
//
//	created, _ := client.CreateSession(nil)
//	defer client.DestroySession(created.Session())
//	resp, _ := client.Get(url, scrappey.Payload{"session": created.Session()})
package scrappey

// Version is the current version of the SDK.
const Version = "0.3.0"

// DefaultBaseURL is the Scrappey API endpoint.
const DefaultBaseURL = "https://publisher.scrappey.com/api/v1"
