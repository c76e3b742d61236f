package pipeline

import (
	"fmt"
	"html"

	"github.com/memohai/mediagrab/internal/link"
)

const bytesPerMB = 1024 * 1024

// NoSupportedURLText is the reply to messages without a recognized link.
const NoSupportedURLText = "❌ <b>No supported URL found!</b>\n\n" +
	"Please send a valid URL from:\n" +
	"• <b>Instagram:</b> <code>https://instagram.com/p/xxxxx</code>\n" +
	"• <b>TeraBox:</b> <code>https://terabox.com/s/xxxxx</code>"

func processingText(p link.Provider) string {
	switch p {
	case link.ProviderTeraBox:
		return "🔄 <b>Processing TeraBox URL...</b>"
	default:
		return "🔄 <b>Processing Instagram URL...</b>"
	}
}

func resolutionFailedText(p link.Provider) string {
	switch p {
	case link.ProviderTeraBox:
		return "❌ <b>Failed to fetch TeraBox content</b>\n\n" +
			"<b>Possible reasons:</b>\n" +
			"• File is private or expired\n" +
			"• Invalid URL\n" +
			"• Temporary server issue\n\n" +
			"<i>Please try again later.</i>"
	default:
		return "❌ <b>Failed to fetch Instagram content</b>\n\n" +
			"<b>Possible reasons:</b>\n" +
			"• Post is private\n" +
			"• Invalid URL\n" +
			"• Temporary server issue\n\n" +
			"<i>Please try again later.</i>"
	}
}

func tooLargeText(size, limit int64) string {
	return fmt.Sprintf("❌ <b>File too large!</b>\n\n<b>File size:</b> %.1fMB\n<b>Maximum allowed:</b> %s",
		float64(size)/bytesPerMB, humanLimit(limit))
}

func humanLimit(limit int64) string {
	const gb = 1024 * bytesPerMB
	if limit >= gb && limit%gb == 0 {
		return fmt.Sprintf("%dGB", limit/gb)
	}
	return fmt.Sprintf("%.1fMB", float64(limit)/bytesPerMB)
}

func originalURLCaption(url string) string {
	return "🔗 Original URL: " + html.EscapeString(url)
}

func photoCaption(idx, total int) string {
	return fmt.Sprintf("📸 <b>Image %d/%d</b>", idx, total)
}

func fileDownloadText(name, size string) string {
	return fmt.Sprintf("⏬ <b>Downloading TeraBox file...</b>\n📁 <b>File:</b> %s\n📊 <b>Size:</b> %s",
		html.EscapeString(name), html.EscapeString(size))
}

func photoSetText(total int) string {
	return fmt.Sprintf("📸 <b>Downloading %d image(s)...</b>", total)
}

func photoItemText(idx, total int) string {
	return fmt.Sprintf("⏬ <b>Downloading image %d/%d...</b>", idx, total)
}
