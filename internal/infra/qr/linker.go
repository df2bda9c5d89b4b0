package qr

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"smart-mirror/internal/domain"
)

// Linker builds links to the photo gallery that a phone on the same
// network can open.
type Linker struct {
	publicURL string
	port      string
	localIP   func() string
}

// NewLinker uses publicURL when set. Otherwise links point at this host's
// LAN address on the port of listenAddr.
func NewLinker(publicURL, listenAddr string) *Linker {
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil || port == "" {
		port = "5001"
	}
	return &Linker{
		publicURL: strings.TrimRight(publicURL, "/"),
		port:      port,
		localIP:   LocalIP,
	}
}

func (l *Linker) baseURL() string {
	if l.publicURL != "" {
		return l.publicURL
	}
	return "http://" + net.JoinHostPort(l.localIP(), l.port)
}

func (l *Linker) GalleryURL() string {
	return l.baseURL() + "/gallery"
}

func (l *Linker) PhotoURL(file string) string {
	return l.baseURL() + "/captures/" + url.PathEscape(file)
}

// GalleryQR returns the gallery link as a PNG data URL.
func (l *Linker) GalleryQR() (string, error) {
	png, err := qrcode.Encode(l.GalleryURL(), qrcode.Highest, 256)
	if err != nil {
		return "", fmt.Errorf("encoding qr: %w", err)
	}
	return domain.EncodeDataURL("image/png", png), nil
}

// LocalIP returns the address of the interface used for outbound traffic.
// No packet is sent.
func LocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "127.0.0.1"
	}
	return addr.IP.String()
}
