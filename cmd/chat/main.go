package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Terrarium server URL")
	flag.Parse()

	fmt.Println("Terrarium CLI")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Type 'exit' or 'quit' to leave. Plain text posts to the active channel.")
	fmt.Println("Commands: /status, /who, /channels, /use <channel>, /log, /warn <name>, /kick <name>")
	fmt.Println("---")

	fetchStatus(*server)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}

		switch {
		case input == "/status":
			fetchStatus(*server)
		case input == "/who":
			fetchParticipants(*server)
		case input == "/channels":
			fetchChannels(*server)
		case strings.HasPrefix(input, "/use "):
			activateChannel(*server, strings.TrimSpace(strings.TrimPrefix(input, "/use ")))
		case input == "/log":
			fetchMessages(*server, 15)
		case strings.HasPrefix(input, "/warn "):
			moderate(*server, "warn", strings.TrimSpace(strings.TrimPrefix(input, "/warn ")))
		case strings.HasPrefix(input, "/kick "):
			moderate(*server, "kick", strings.TrimSpace(strings.TrimPrefix(input, "/kick ")))
		case strings.HasPrefix(input, "/"):
			printError("Unknown command: %s", input)
		default:
			sendMessage(*server, input)
		}
	}
}

func activeChannel(server string) string {
	resp, err := http.Get(server + "/api/world/status")
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	var status struct {
		ActiveChannel string `json:"active_channel"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return ""
	}
	return status.ActiveChannel
}

func fetchStatus(server string) {
	resp, err := http.Get(server + "/api/world/status")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	var status struct {
		ParticipantCount int     `json:"participant_count"`
		OnlineCount      int     `json:"online_count"`
		ChannelCount     int     `json:"channel_count"`
		ActiveChannel    string  `json:"active_channel"`
		Topic            string  `json:"topic"`
		TopicConfidence  float64 `json:"topic_confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	fmt.Printf("Participants: %d (%d online) | Channels: %d | Active: %s\n",
		status.ParticipantCount, status.OnlineCount, status.ChannelCount, status.ActiveChannel)
	if status.Topic != "" {
		fmt.Printf("Current topic: %s (%.0f%%)\n", status.Topic, status.TopicConfidence*100)
	}
}

func fetchParticipants(server string) {
	resp, err := http.Get(server + "/api/participants")
	if err != nil {
		printError("Failed to fetch participants: %v", err)
		return
	}
	defer resp.Body.Close()

	var participants []struct {
		Name     string `json:"name"`
		Role     string `json:"role"`
		Presence string `json:"presence"`
		Mood     string `json:"mood"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&participants); err != nil {
		printError("Failed to parse participants: %v", err)
		return
	}
	for _, p := range participants {
		icon := "\033[31m●\033[0m"
		if p.Presence == "online" {
			icon = "\033[32m●\033[0m"
		} else if p.Presence == "afk" {
			icon = "\033[33m●\033[0m"
		}
		fmt.Printf("  %s %s (%s) mood: %s\n", icon, p.Name, p.Role, p.Mood)
	}
}

func fetchChannels(server string) {
	resp, err := http.Get(server + "/api/channels")
	if err != nil {
		printError("Failed to fetch channels: %v", err)
		return
	}
	defer resp.Body.Close()

	var body struct {
		Channels []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"channels"`
		Active string `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		printError("Failed to parse channels: %v", err)
		return
	}
	for _, ch := range body.Channels {
		marker := " "
		if ch.ID == body.Active {
			marker = "\033[32m*\033[0m"
		}
		fmt.Printf("  %s #%s (%s)\n", marker, ch.Name, ch.ID)
	}
}

func activateChannel(server, channelID string) {
	resp, err := http.Post(server+"/api/channels/"+url.PathEscape(channelID)+"/activate", "application/json", nil)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}
	fmt.Printf("Switched to %s\n", channelID)
}

func fetchMessages(server string, limit int) {
	channelID := activeChannel(server)
	if channelID == "" {
		printError("No active channel")
		return
	}
	resp, err := http.Get(fmt.Sprintf("%s/api/channels/%s/messages?limit=%d", server, url.PathEscape(channelID), limit))
	if err != nil {
		printError("Failed to fetch messages: %v", err)
		return
	}
	defer resp.Body.Close()

	var messages []struct {
		Author    string    `json:"author"`
		Text      string    `json:"text"`
		Timestamp time.Time `json:"timestamp"`
		System    bool      `json:"is_system"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		printError("Failed to parse messages: %v", err)
		return
	}
	for _, m := range messages {
		stamp := m.Timestamp.Format("15:04:05")
		if m.System {
			fmt.Printf("  \033[33m%s * %s\033[0m\n", stamp, m.Text)
		} else {
			fmt.Printf("  %s \033[36m[%s]\033[0m %s\n", stamp, m.Author, m.Text)
		}
	}
}

func sendMessage(server, text string) {
	channelID := activeChannel(server)
	if channelID == "" {
		printError("No active channel")
		return
	}
	body, _ := json.Marshal(map[string]string{"text": text})

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(
		server+"/api/channels/"+url.PathEscape(channelID)+"/messages",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	// Give the population a moment to react, then show the tail.
	time.Sleep(2 * time.Second)
	fetchMessages(server, 5)
}

func moderate(server, action, name string) {
	body, _ := json.Marshal(map[string]string{"name": name})
	resp, err := http.Post(server+"/api/moderation/"+action, "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}
	fmt.Printf("Done: %s %s\n", action, name)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
