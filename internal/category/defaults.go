package category

// builtinCategories returns the seed mapping for common apps. Seeding
// these avoids an empty store on first run; users can overwrite any of
// them through the normal update path.
func builtinCategories() []Category {
	return []Category{
		// Development
		{AppName: "code", Category: "development", Subcategory: "ide", ProductivityScore: 95},
		{AppName: "Code.exe", Category: "development", Subcategory: "ide", ProductivityScore: 95},
		{AppName: "jetbrains-idea", Category: "development", Subcategory: "ide", ProductivityScore: 95},
		{AppName: "kitty", Category: "development", Subcategory: "terminal", ProductivityScore: 85},
		{AppName: "alacritty", Category: "development", Subcategory: "terminal", ProductivityScore: 85},
		{AppName: "gnome-terminal", Category: "development", Subcategory: "terminal", ProductivityScore: 85},
		{AppName: "WindowsTerminal.exe", Category: "development", Subcategory: "terminal", ProductivityScore: 85},

		// Browsers: useful and dangerous in equal measure
		{AppName: "firefox", Category: "productivity", Subcategory: "browser", ProductivityScore: 60},
		{AppName: "chromium", Category: "productivity", Subcategory: "browser", ProductivityScore: 60},
		{AppName: "google-chrome", Category: "productivity", Subcategory: "browser", ProductivityScore: 60},
		{AppName: "brave-browser", Category: "productivity", Subcategory: "browser", ProductivityScore: 60},

		// Writing and notes
		{AppName: "obsidian", Category: "productivity", Subcategory: "notes", ProductivityScore: 85},
		{AppName: "zathura", Category: "productivity", Subcategory: "reader", ProductivityScore: 80},
		{AppName: "libreoffice-writer", Category: "work", Subcategory: "documents", ProductivityScore: 85},

		// Communication
		{AppName: "slack", Category: "communication", Subcategory: "chat", ProductivityScore: 50},
		{AppName: "discord", Category: "communication", Subcategory: "chat", ProductivityScore: 40},
		{AppName: "Discord.exe", Category: "communication", Subcategory: "chat", ProductivityScore: 40},
		{AppName: "teams", Category: "communication", Subcategory: "chat", ProductivityScore: 50},
		{AppName: "zoom", Category: "communication", Subcategory: "video", ProductivityScore: 60},
		{AppName: "thunderbird", Category: "communication", Subcategory: "email", ProductivityScore: 55},

		// Entertainment
		{AppName: "steam", Category: "entertainment", Subcategory: "gaming", ProductivityScore: 10},
		{AppName: "steamwebhelper", Category: "entertainment", Subcategory: "gaming", ProductivityScore: 10},
		{AppName: "cs2", Category: "entertainment", Subcategory: "gaming", ProductivityScore: 0},
		{AppName: "spotify", Category: "entertainment", Subcategory: "music", ProductivityScore: 30},
		{AppName: "vlc", Category: "entertainment", Subcategory: "video", ProductivityScore: 20},
		{AppName: "mpv", Category: "entertainment", Subcategory: "video", ProductivityScore: 20},

		// System
		{AppName: "nautilus", Category: "system", Subcategory: "file_manager", ProductivityScore: 50},
		{AppName: "explorer.exe", Category: "system", Subcategory: "file_manager", ProductivityScore: 50},
		{AppName: "gnome-system-monitor", Category: "system", Subcategory: "utility", ProductivityScore: 50},
	}
}
