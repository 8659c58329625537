// Command scrappey is a CLI for the Scrappey web scraping API.
//
// Usage:
//
//	scrappey get <url>
//	scrappey post <url> -d '{"key":"value"}'
//	scrappey session create
//	scrappey session destroy <session>
//	scrappey batch urls.txt -c 4
//	scrappey proxy -P 8080
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scrappey/scrappey-go"
	"github.com/spf13/cobra"
)

// app holds the state shared by all subcommands.
type app struct {
	// Global flags
	configPath string
	apiKey     string
	baseURL    string
	timeout    int
	verbose    bool
	outputJSON bool

	cfg    *Config
	logger zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[x] Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "scrappey",
		Short:         "Scrappey - web scraping API client",
		Version:       scrappey.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: ./.scrappeyrc.yaml or <user config dir>/scrappey/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&a.apiKey, "api-key", "K", "", "API key (or set SCRAPPEY_API_KEY env var)")
	rootCmd.PersistentFlags().StringVarP(&a.baseURL, "base-url", "B", "", "API endpoint (default: "+scrappey.DefaultBaseURL+")")
	rootCmd.PersistentFlags().IntVarP(&a.timeout, "timeout", "T", 0, "Timeout in seconds, must be positive (default: 300)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&a.outputJSON, "json", false, "Output result as JSON")

	rootCmd.AddCommand(a.newGetCmd("get", scrappey.CmdGet))
	rootCmd.AddCommand(a.newGetCmd("delete", scrappey.CmdDelete))
	rootCmd.AddCommand(a.newSendCmd("post", scrappey.CmdPost))
	rootCmd.AddCommand(a.newSendCmd("put", scrappey.CmdPut))
	rootCmd.AddCommand(a.newSendCmd("patch", scrappey.CmdPatch))
	rootCmd.AddCommand(a.newSessionCmd())
	rootCmd.AddCommand(a.newBatchCmd())
	rootCmd.AddCommand(a.newProxyCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// load resolves configuration: flags > env > config file > defaults.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("api-key") {
		cfg.APIKey = a.apiKey
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = a.baseURL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = a.timeout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level := zerolog.WarnLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	if cfg.Source != "" {
		a.logger.Debug().Str("path", cfg.Source).Msg("loaded config")
	}
	return nil
}

func (a *app) newClient() (*scrappey.Client, error) {
	if err := a.cfg.requireAPIKey(); err != nil {
		return nil, err
	}
	opts := []scrappey.Option{
		scrappey.WithBaseURL(a.cfg.BaseURL),
		scrappey.WithTimeout(time.Duration(a.cfg.Timeout) * time.Second),
		scrappey.WithLogger(a.logger),
	}
	if a.cfg.APIProxy != "" {
		opts = append(opts, scrappey.WithAPIProxy(a.cfg.APIProxy))
	}
	if a.cfg.Impersonate != "" {
		opts = append(opts, scrappey.WithImpersonate(a.cfg.Impersonate))
	}
	return scrappey.New(a.cfg.APIKey, opts...), nil
}

// outputFlags select what part of a response is printed.
type outputFlags struct {
	path     string
	selector string
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.path, "path", "", "Print only this gjson path of the response (e.g. solution.cookies.#.name)")
	cmd.Flags().StringVar(&f.selector, "select", "", "Print the text of elements matching this CSS selector in the page HTML")
}

// get/delete command
func (a *app) newGetCmd(name string, command scrappey.Command) *cobra.Command {
	var (
		reqFlags requestFlags
		outFlags outputFlags
	)

	cmd := &cobra.Command{
		Use:   name + " <url>",
		Short: fmt.Sprintf("Send a %s request through Scrappey", strings.ToUpper(name)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := reqFlags.payload(a.cfg.Options)
			if err != nil {
				return err
			}
			payload := scrappey.Merge(scrappey.Payload{"cmd": string(command), "url": args[0]}, options)
			return a.send(cmd, payload, &outFlags)
		},
	}

	reqFlags.register(cmd)
	outFlags.register(cmd)
	return cmd
}

// post/put/patch command
func (a *app) newSendCmd(name string, command scrappey.Command) *cobra.Command {
	var (
		reqFlags requestFlags
		outFlags outputFlags
		data     string
	)

	cmd := &cobra.Command{
		Use:   name + " <url>",
		Short: fmt.Sprintf("Send a %s request through Scrappey", strings.ToUpper(name)),
		Long: fmt.Sprintf(`Send a %s request through Scrappey.

Examples:
    scrappey %s https://httpbin.rs/%s -d '{"name":"John"}'
    scrappey %s https://example.com/form -d 'a=1&b=2' -H "Content-Type: application/x-www-form-urlencoded"
    scrappey %s https://example.com/upload -d @body.json`, strings.ToUpper(name), name, name, name, name),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := reqFlags.payload(a.cfg.Options)
			if err != nil {
				return err
			}
			postData, err := parseData(data)
			if err != nil {
				return err
			}
			payload := scrappey.Merge(scrappey.Payload{
				"cmd":      string(command),
				"url":      args[0],
				"postData": postData,
			}, options)
			return a.send(cmd, payload, &outFlags)
		},
	}

	reqFlags.register(cmd)
	outFlags.register(cmd)
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body; @file reads it from a file")
	return cmd
}

func (a *app) send(cmd *cobra.Command, payload scrappey.Payload, out *outputFlags) error {
	client, err := a.newClient()
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.RequestContext(cmd.Context(), payload)
	if err != nil {
		return err
	}
	return a.printResponse(cmd.OutOrStdout(), resp, out)
}

func (a *app) printResponse(w io.Writer, resp *scrappey.Response, out *outputFlags) error {
	switch {
	case out != nil && out.path != "":
		fmt.Fprintln(w, resp.Get(out.path).String())
	case out != nil && out.selector != "":
		doc, err := resp.Solution().Document()
		if err != nil {
			return fmt.Errorf("failed to parse page HTML: %w", err)
		}
		doc.Find(out.selector).Each(func(_ int, sel *goquery.Selection) {
			fmt.Fprintln(w, strings.TrimSpace(sel.Text()))
		})
	case a.outputJSON:
		printJSON(w, resp.Fields)
	default:
		solution := resp.Solution()
		if resp.Data() == "error" {
			fmt.Fprintf(w, "[x] %v\n", resp.Err())
		} else {
			fmt.Fprintln(w, "[+] Request completed")
		}
		fmt.Fprintf(w, "    Status Code: %d\n", solution.StatusCode())
		fmt.Fprintf(w, "    Verified: %v\n", solution.Verified())
		if resp.Session() != "" {
			fmt.Fprintf(w, "    Session: %s\n", resp.Session())
		}
		if current := solution.CurrentURL(); current != "" {
			fmt.Fprintf(w, "    Current URL: %s\n", current)
		}
		for i, v := range solution.JavascriptReturn() {
			fmt.Fprintf(w, "    JS[%d]: %v\n", i, v)
		}
		body := solution.InnerText()
		if body == "" {
			body = solution.Body()
		}
		if body != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, body)
		}
	}
	return resp.Err()
}

// session command group
func (a *app) newSessionCmd() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage remote browser sessions",
	}

	sessionCmd.AddCommand(a.newSessionCreateCmd())
	sessionCmd.AddCommand(a.newSessionDestroyCmd())
	sessionCmd.AddCommand(a.newSessionListCmd())
	sessionCmd.AddCommand(a.newSessionActiveCmd())

	return sessionCmd
}

func (a *app) newSessionCreateCmd() *cobra.Command {
	var (
		reqFlags requestFlags
		newID    bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session and print its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := reqFlags.payload(a.cfg.Options)
			if err != nil {
				return err
			}
			if newID && reqFlags.session == "" {
				options["session"] = uuid.NewString()
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.CreateSessionContext(cmd.Context(), options)
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}

			if a.outputJSON {
				printJSON(cmd.OutOrStdout(), resp.Fields)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), resp.Session())
			}
			return nil
		},
	}

	reqFlags.register(cmd)
	cmd.Flags().BoolVar(&newID, "new-id", false, "Choose a random session token instead of letting the API pick one")
	return cmd
}

func (a *app) newSessionDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <session>",
		Short: "Destroy a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.DestroySessionContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := resp.Err(); err != nil {
				return err
			}
			if a.outputJSON {
				printJSON(cmd.OutOrStdout(), resp.Fields)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "[+] Session %s destroyed\n", args[0])
			}
			return nil
		},
	}
}

func (a *app) newSessionListCmd() *cobra.Command {
	var userID int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active sessions of a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			resp, err := client.ListSessionsContext(cmd.Context(), userID)
			if err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), resp.Fields)
			return resp.Err()
		},
	}

	cmd.Flags().IntVar(&userID, "user-id", 0, "User ID")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func (a *app) newSessionActiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "active <session>",
		Short: "Check whether a session is active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			active, err := client.IsSessionActiveContext(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.outputJSON {
				printJSON(cmd.OutOrStdout(), map[string]any{"session": args[0], "active": active})
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), active)
			}
			return nil
		},
	}
}

// batch command
func (a *app) newBatchCmd() *cobra.Command {
	var (
		reqFlags    requestFlags
		concurrency int
		perSecond   float64
	)

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "GET every URL listed in a file (one per line, - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			urls, err := readURLs(in)
			if err != nil {
				return err
			}

			options, err := reqFlags.payload(a.cfg.Options)
			if err != nil {
				return err
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			fetch := func(ctx context.Context, targetURL string) (*scrappey.Response, error) {
				return client.GetContext(ctx, targetURL, options)
			}
			results, err := runBatch(cmd.Context(), urls, concurrency, perSecond, fetch)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.outputJSON {
				printJSON(out, results)
			} else {
				for _, r := range results {
					if r.Error != "" {
						fmt.Fprintf(out, "[x] %s: %s\n", r.URL, r.Error)
					} else {
						fmt.Fprintf(out, "[+] %s: %d\n", r.URL, r.StatusCode)
					}
				}
			}

			if failed := countFailures(results); failed > 0 {
				return fmt.Errorf("%d of %d requests failed", failed, len(results))
			}
			return nil
		},
	}

	reqFlags.register(cmd)
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 4, "Number of concurrent requests")
	cmd.Flags().Float64Var(&perSecond, "rate", 0, "Maximum requests started per second (0 = unlimited)")
	return cmd
}

// proxy command
func (a *app) newProxyCmd() *cobra.Command {
	var (
		reqFlags requestFlags
		host     string
		port     int
	)

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Start a local HTTP proxy that relays requests through Scrappey",
		Long: `Start a local HTTP proxy that relays requests through Scrappey.

Clients must send absolute http:// or https:// request URLs; the
request is fetched by Scrappey, not tunnelled. CONNECT is refused, so
tools that tunnel https through a proxy (curl -x for https URLs) are not
supported.

Example:
    scrappey proxy -P 8080 --cloudflare-bypass
    curl -x http://127.0.0.1:8080 http://example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options, err := reqFlags.payload(a.cfg.Options)
			if err != nil {
				return err
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			proxy := scrappey.NewForwardProxy(client,
				scrappey.WithProxyHost(host),
				scrappey.WithProxyPort(port),
				scrappey.WithProxyOptions(options),
				scrappey.WithProxyLogger(a.logger),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = proxy.Shutdown(shutdownCtx)
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "Proxy ready at http://%s\n", proxy.Addr())
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")
			return proxy.ListenAndServe()
		},
	}

	reqFlags.register(cmd)
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Listen address")
	cmd.Flags().IntVarP(&port, "port", "P", 8080, "Listen port")
	return cmd
}

// version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scrappey %s\n", scrappey.Version)
		},
	}
}

func printJSON(w io.Writer, v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(data))
}
