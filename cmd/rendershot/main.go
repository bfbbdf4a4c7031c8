package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aicv-backend/internal/screenshot"
	sharedauth "aicv-backend/internal/shared/auth"
	"aicv-backend/internal/shared/config"
	localstore "aicv-backend/internal/shared/storage/object/local"
)

// rendershot captures one resume preview against a running frontend and writes
// the pages to a local directory. Useful when tuning selectors and timeouts.
func main() {
	templateType := flag.String("template", "", "template type to render")
	resumeID := flag.String("resume", "", "resume id")
	color := flag.String("color", "", "optional theme color")
	userID := flag.String("user", "", "owner id; a short-lived token is minted for it")
	outDir := flag.String("out", "./out/rendershot", "output directory")
	flag.Parse()

	if strings.TrimSpace(*templateType) == "" || strings.TrimSpace(*resumeID) == "" {
		fmt.Fprintln(os.Stderr, "usage: rendershot -template <type> -resume <id> [-user <id>] [-color <c>] [-out <dir>]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	token := ""
	if *userID != "" {
		signer := sharedauth.NewSigner(cfg.JWT.Secret, cfg.JWT.TTL)
		token, err = signer.SignWithTTL(*userID, "", cfg.Render.ServiceTokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
			os.Exit(1)
		}
	}

	store := localstore.New(*outDir, "file://"+absPath(*outDir))
	browser := screenshot.NewChrome(screenshot.ChromeOptions{
		ExecPath:       cfg.Render.ChromePath,
		NavTimeout:     cfg.Render.NavTimeout,
		ReadyTimeout:   cfg.Render.ReadyTimeout,
		ReadySelector:  cfg.Render.ReadySelector,
		PageSelector:   cfg.Render.PageSelector,
		ViewportWidth:  cfg.Render.ViewportWidth,
		ViewportHeight: cfg.Render.ViewportHeight,
		Format:         cfg.Render.Format,
	})
	orch := screenshot.NewOrchestrator(browser, store, cfg.Render.BaseURL)

	req := screenshot.Request{
		TemplateType: *templateType,
		ResumeID:     *resumeID,
		Color:        *color,
		AuthToken:    token,
	}
	fmt.Printf("rendering %s\n", screenshot.PageURL(cfg.Render.BaseURL, req))

	urls, err := orch.Render(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
		os.Exit(1)
	}

	if err := validateOutputs(*outDir, urls); err != nil {
		fmt.Fprintf(os.Stderr, "render validation failed: %v\n", err)
		os.Exit(1)
	}

	for _, u := range urls {
		fmt.Println(u)
	}
	fmt.Printf("OK: %d page(s) in %s\n", len(urls), *outDir)
}

// validateOutputs checks every produced file exists and that PDFs parse.
func validateOutputs(dir string, urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("no pages produced")
	}
	prefix := "file://" + absPath(dir) + "/"
	for _, u := range urls {
		rel := strings.TrimPrefix(u, prefix)
		path := filepath.Join(dir, filepath.FromSlash(rel))
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("%s is empty", path)
		}
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			n, err := screenshot.PDFPageCount(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s: %d pdf page(s)\n", path, n)
		}
	}
	return nil
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(abs)
}
