// Console client for the CrisisConnect relay. Connects over the device
// socket, prints everything the relay broadcasts, and turns typed input into
// messages. Commands: "emergency", "status: <text>", "quit".
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/ruhul03/crisis-connect/pkg/types"
)

var (
	emergencyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	textStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
)

func main() {
	addr := flag.String("addr", "localhost:8888", "relay address")
	name := flag.String("name", "", "display name (prompted when omitted)")
	flag.Parse()

	stdin := bufio.NewScanner(os.Stdin)

	userName := *name
	if userName == "" {
		fmt.Print("Enter your name: ")
		if !stdin.Scan() {
			return
		}
		userName = strings.TrimSpace(stdin.Text())
	}
	if userName == "" {
		log.Fatal("a display name is required")
	}
	userID := uuid.New().String()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *addr, err)
	}
	defer conn.Close()

	fmt.Println("Connected to CrisisConnect relay at", *addr)
	fmt.Println("Commands: 'status: <text>' update status, 'emergency' send emergency, 'quit' exit")

	go receiveLoop(conn)

	out := bufio.NewWriter(conn)
	for {
		fmt.Print(promptStyle.Render(userName+" > "), "")
		if !stdin.Scan() {
			return
		}
		input := strings.TrimSpace(stdin.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "quit") {
			fmt.Println("Disconnected from CrisisConnect")
			return
		}

		msg := buildMessage(userID, userName, input)
		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("failed to encode message: %v", err)
			continue
		}
		if _, err := out.Write(append(data, '\n')); err != nil {
			log.Fatalf("connection lost: %v", err)
		}
		if err := out.Flush(); err != nil {
			log.Fatalf("connection lost: %v", err)
		}
	}
}

// buildMessage maps console input onto the wire model. Emergencies go out
// pre-typed with CRITICAL priority; the relay preserves both unchanged.
func buildMessage(userID, userName, input string) *types.Message {
	msg := &types.Message{
		ID:         uuid.New().String(),
		SenderID:   userID,
		SenderName: userName,
		Timestamp:  time.Now(),
	}

	switch {
	case strings.EqualFold(input, "emergency"):
		msg.Content = "EMERGENCY! I need immediate help!"
		msg.Type = types.MessageTypeEmergency
		msg.Priority = types.PriorityCritical
	case strings.HasPrefix(strings.ToLower(input), "status:"):
		msg.Content = strings.TrimSpace(input[len("status:"):])
		msg.Type = types.MessageTypeStatusUpdate
		msg.Priority = types.PriorityHigh
	default:
		msg.Content = input
		msg.Type = types.MessageTypeText
		msg.Priority = types.PriorityNormal
	}

	return msg
}

func receiveLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg types.Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			fmt.Println(scanner.Text())
			continue
		}
		display(&msg)
	}
	fmt.Println("\nConnection lost")
	os.Exit(1)
}

func display(msg *types.Message) {
	style := textStyle
	switch msg.Type {
	case types.MessageTypeEmergency:
		style = emergencyStyle
	case types.MessageTypeStatusUpdate:
		style = statusStyle
	case types.MessageTypeSystem:
		style = systemStyle
	}

	line := fmt.Sprintf("[%s] %s: %s",
		msg.Timestamp.Format("15:04:05"), msg.SenderName, msg.Content)
	fmt.Println("\n" + style.Render(line))
	fmt.Print(promptStyle.Render("> "))
}
