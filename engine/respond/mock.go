package respond

import (
	"context"
	"fmt"
	"strings"

	"github.com/humanoid-academy/coursebot/engine/domain"
)

// MockName identifies the keyword responder in health output.
const MockName = "mock"

// Mock answers from canned course summaries chosen by keyword.
type Mock struct{}

var _ Responder = Mock{}

func (Mock) Name() string { return MockName }

type cannedAnswer struct {
	keywords []string
	text     string
}

var canned = []cannedAnswer{
	{
		keywords: []string{"ros"},
		text: `ROS 2 (Robot Operating System 2) is a flexible framework for writing robot software. It's a collection of tools, libraries, and conventions designed to simplify the task of creating complex robot behavior.

Key features of ROS 2:
- **Distributed Architecture**: No single point of failure
- **Real-time Support**: For safety-critical applications
- **Multi-platform**: Linux, Windows, macOS
- **DDS Middleware**: Industry-standard communication

ROS 2 uses nodes (independent processes) that communicate via topics (streaming data), services (request-response), and actions (long-running tasks with feedback).

For installation and getting started, check out Chapter 1 of Module 1!`,
	},
	{
		keywords: []string{"topic", "publish", "subscribe"},
		text: `Topics in ROS 2 enable asynchronous, many-to-many communication between nodes.

**How Topics Work:**
- Publishers send messages to a topic
- Subscribers receive messages from a topic
- Multiple publishers and subscribers can use the same topic
- Fire-and-forget pattern (publishers don't wait)

**When to Use Topics:**
- Streaming sensor data (camera, LiDAR, IMU)
- Robot state updates
- Continuous monitoring

Example use case: A camera node publishes images on ` + "`/camera/image_raw`" + ` topic, while multiple vision processing nodes can subscribe to process those images.

See Chapter 2 for detailed examples with code!`,
	},
	{
		keywords: []string{"gazebo", "simulation"},
		text: `Gazebo is a powerful physics-based robot simulator. It allows you to test robots in realistic environments before deploying to hardware.

**Key Features:**
- Realistic physics engines (ODE, Bullet, Simbody)
- Sensor simulation (cameras, LiDAR, IMU)
- ROS 2 integration
- 3D visualization

**Why Use Gazebo:**
- Safe testing environment
- Iterate faster than hardware
- Test edge cases and failures
- Generate synthetic training data

Module 2 covers Gazebo in depth with hands-on labs!`,
	},
	{
		keywords: []string{"isaac", "nvidia"},
		text: `NVIDIA Isaac is a comprehensive platform for AI-powered robotics development.

**Isaac Platform Components:**
- **Isaac Sim**: Photorealistic simulation with Omniverse
- **Isaac ROS**: Hardware-accelerated perception packages
- **Isaac Gym**: Massively parallel RL training

**Why Isaac?**
- RTX-powered ray tracing
- GPU-accelerated computer vision
- Synthetic data generation at scale
- Sim-to-real transfer capabilities

Module 3 explores the Isaac ecosystem with practical examples!`,
	},
	{
		keywords: []string{"vla", "llm", "gpt"},
		text: `Vision-Language-Action (VLA) systems combine computer vision, natural language understanding, and robot control.

**VLA Pipeline:**
1. **Vision**: Perceive the environment (cameras, sensors)
2. **Language**: Understand natural language commands (GPT-4, Whisper)
3. **Action**: Execute robot actions (motion planning, control)

**Example Workflow:**
- User says: "Pick up the red cup"
- Whisper transcribes speech
- GPT-4 breaks down into steps
- Vision system locates red cup
- Robot executes pick-and-place

Module 4 covers VLA with the Autonomous Humanoid capstone project!`,
	},
}

// Respond picks the first canned answer whose keyword occurs in the
// message, else a module overview naming up to two passage chapters.
func (Mock) Respond(_ context.Context, message string, passages []domain.Passage, _ []domain.Turn) string {
	lower := strings.ToLower(message)
	for _, c := range canned {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.text
			}
		}
	}
	return overview(message, passages)
}

func overview(message string, passages []domain.Passage) string {
	var basis string
	if len(passages) > 0 {
		n := min(len(passages), 2)
		chapters := make([]string, n)
		for i, p := range passages[:n] {
			chapters[i] = p.Chapter
		}
		basis = fmt.Sprintf("\n\nBased on the course content (particularly %s), ", strings.Join(chapters, ", "))
	}

	return fmt.Sprintf(`I'm here to help you learn about Physical AI and Humanoid Robotics!%s

This course covers:
- **Module 1**: ROS 2 (Robot Operating System)
- **Module 2**: Gazebo & Unity Simulation
- **Module 3**: NVIDIA Isaac Platform
- **Module 4**: Vision-Language-Action Systems

You asked: "%s"

Could you be more specific? For example:
- "What is ROS 2?"
- "How do topics work?"
- "Tell me about Gazebo simulation"
- "What is NVIDIA Isaac?"

Feel free to select any text from the course and ask me about it!`, basis, message)
}
