package serve

import (
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/skip2/go-qrcode"
)

// pageURLs returns the page URLs the server can be reached at. A wildcard
// bind address expands to localhost plus every local IPv4 address.
func pageURLs(host string, port int) []string {
	hosts := []string{host}
	if host == "" || host == "0.0.0.0" || host == "::" {
		hosts = append([]string{"localhost"}, localIPStrings()...)
	}
	return lo.Map(hosts, func(h string, _ int) string {
		return fmt.Sprintf("http://%s/", net.JoinHostPort(h, fmt.Sprint(port)))
	})
}

// localIPStrings returns all non-loopback IPv4 addresses as strings
func localIPStrings() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var result []string
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			result = append(result, ipnet.IP.String())
		}
	}
	return result
}

// printURLs renders the page and endpoint URL of every address.
func printURLs(w io.Writer, urls []string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Page", "Terminal endpoint"})
	for _, u := range urls {
		endpoint := "ws" + strings.TrimPrefix(strings.TrimSuffix(u, "/"), "http") + shellPath
		t.AppendRow(table.Row{u, endpoint})
	}
	t.Render()
}

// printQR renders text as a QR code of terminal background colors, two
// columns per module.
func printQR(w io.Writer, text string) error {
	qr, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("generating qr code: %w", err)
	}
	const (
		black = "\033[40m  \033[0m"
		white = "\033[47m  \033[0m"
	)
	var sb strings.Builder
	for _, row := range qr.Bitmap() {
		for _, module := range row {
			if module {
				sb.WriteString(black)
			} else {
				sb.WriteString(white)
			}
		}
		sb.WriteString("\033[0m\n")
	}
	_, err = io.WriteString(w, sb.String())
	return err
}
