package bot

// StartText greets users on /start.
const StartText = `🎬📸 <b>Multi-Platform Downloader Bot</b>

Welcome! Send me any supported URL and I'll download it for you.

<b>What I can download:</b>
🎥 <b>Instagram Reels</b> - Video content (up to 2GB)
📸 <b>Instagram Photos</b> - Single or multiple images
📱 <b>Instagram Posts</b> - Any Instagram post content
📦 <b>TeraBox Files</b> - Videos and files from TeraBox

<b>How to use:</b>
1. Copy a supported link
2. Send it to me
3. Wait for processing ⏳
4. Get your content! 📥

<b>Supported platforms:</b>
• Instagram (Reels/Photos)
• TeraBox (Files/Videos)

Type /help for more information.`

// HelpText lists commands and accepted URL forms on /help.
const HelpText = `📖 <b>Help - Multi-Platform Downloader Bot</b>

<b>Commands:</b>
• <code>/start</code> - Start the bot
• <code>/help</code> - Show this help message

<b>Supported Content:</b>
🎥 <b>Instagram Reels</b> - Downloaded as MP4 (up to 2GB)
📸 <b>Instagram Photos</b> - Downloaded as JPG (HD Quality)
📦 <b>TeraBox Files</b> - Any file type supported by TeraBox

<b>How to download:</b>
1. Open Instagram or TeraBox app/website
2. Copy the link of any post/file
3. Send the link to this bot
4. Wait for processing (10-60 seconds)
5. Download will be sent automatically

<b>Supported URLs:</b>

<b>Instagram:</b>
• <code>https://instagram.com/reel/xxxxx</code>
• <code>https://instagram.com/p/xxxxx</code>
• <code>https://www.instagram.com/reel/xxxxx</code>
• <code>https://www.instagram.com/p/xxxxx</code>

<b>TeraBox:</b>
• <code>https://terabox.com/s/xxxxx</code>
• <code>https://www.terabox.com/s/xxxxx</code>
• <code>https://1024tera.com/s/xxxxx</code>

<i>Note: Only public content can be downloaded.</i>`

// GenericErrorText is sent when handling fails unexpectedly.
const GenericErrorText = "❌ <b>An error occurred while processing your request.</b>\n\n<i>Please try again later.</i>"
