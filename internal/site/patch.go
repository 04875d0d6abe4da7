package site

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"stackpilot/internal/logging"
)

var (
	solutionDemosRE = regexp.MustCompile(`(?s)<div class="solutionDemos">\s*<h2>\s*Solution Demonstrations\s*</h2>\s*<ul>(.*?)</ul>`)
	commButtonsRE   = regexp.MustCompile(`(?s)<div class="communication-buttons">(.*?)</div>`)

	hlsURLRE    = regexp.MustCompile(`data-hls-url="[^"]*"`)
	dashURLRE   = regexp.MustCompile(`data-dash-url="[^"]*"`)
	vodBucketRE = regexp.MustCompile(`data-vod-bucket="[^"]*"`)
)

// StreamingEndpoints holds the streaming stack outputs patched into the site
type StreamingEndpoints struct {
	HLS                string
	Dash               string
	MediaLiveInput     string
	VodBucket          string
	DistributionID     string
	DistributionDomain string
}

const messagingDemoEntry = `
      <li>
        <div class="jobPosition">
          <span class="bolded">
            AWS End User Messaging
          </span>
          <span>
            Amazon SES, PinpointSMSVoice
          </span>
        </div>
        <div class="job-content">
          <div class="projectName bolded">
            <span>
              Contact Form with Email and SMS
            </span>
          </div>
          <div class="smallText">
            <p>
              Direct email contact via mailto link, SMS messaging via API Gateway and Lambda, and email contact form with SES.
            </p>
          </div>
        </div>
      </li>`

const streamingDemoEntry = `
      <li>
        <div class="jobPosition">
          <span class="bolded">
            AWS Media Services
          </span>
          <span>
            MediaLive, MediaPackage, CloudFront
          </span>
        </div>
        <div class="job-content">
          <div class="projectName bolded">
            <span>
              Live Streaming and Video on Demand
            </span>
          </div>
          <div class="smallText">
            <p>
              Live streaming and video on demand capabilities using AWS Media Services, with HLS and DASH delivery via CloudFront.
            </p>
          </div>
        </div>
      </li>`

// UpdateIndexHTML substitutes the API endpoint and email placeholders
// into index.html. Placeholders already substituted are left alone, so
// a second run with the same values is a no-op.
func UpdateIndexHTML(indexPath, apiEndpoint, emailAddress string) error {
	content, err := readIndex(indexPath)
	if err != nil {
		return err
	}

	if strings.Contains(content, "${ApiEndpoint}") {
		content = strings.ReplaceAll(content, "${ApiEndpoint}", apiEndpoint)
		logging.Info("Updated API endpoint in index.html", map[string]interface{}{
			"endpoint": apiEndpoint,
		})
	} else {
		logging.Warn("${ApiEndpoint} placeholder not found in index.html")
	}

	if emailAddress != "" && strings.Contains(content, "${EmailAddress}") {
		content = strings.ReplaceAll(content, "${EmailAddress}", emailAddress)
		logging.Info("Updated email address in index.html", map[string]interface{}{
			"email": emailAddress,
		})
	}

	return writeIndex(indexPath, content)
}

// AddMessagingDemo inserts the messaging entry into the Solution
// Demonstrations list, at most once.
func AddMessagingDemo(indexPath string) error {
	return addSolutionDemo(indexPath, "AWS End User Messaging", messagingDemoEntry)
}

// AddStreamingDemo inserts the streaming media entry into the Solution
// Demonstrations list, at most once.
func AddStreamingDemo(indexPath string) error {
	return addSolutionDemo(indexPath, "AWS Media Services", streamingDemoEntry)
}

func addSolutionDemo(indexPath, marker, entry string) error {
	content, err := readIndex(indexPath)
	if err != nil {
		return err
	}

	if strings.Contains(content, marker) {
		logging.Info("Solution demo already present in index.html", map[string]interface{}{
			"solution": marker,
		})
		return nil
	}

	match := solutionDemosRE.FindStringSubmatch(content)
	if match == nil {
		return fmt.Errorf("Solution Demonstrations section not found in %s", indexPath)
	}

	list := match[1]
	content = strings.Replace(content, list, list+entry, 1)
	if err := writeIndex(indexPath, content); err != nil {
		return err
	}

	logging.Info("Added solution demo to index.html", map[string]interface{}{
		"solution": marker,
	})
	return nil
}

// AddStreamingButtons inserts the streaming playback block after the
// communication buttons, or rewrites its endpoint attributes when the
// block is already present.
func AddStreamingButtons(indexPath string, endpoints StreamingEndpoints) error {
	content, err := readIndex(indexPath)
	if err != nil {
		return err
	}

	if strings.Contains(content, `id="streaming-buttons"`) {
		if endpoints.HLS != "" {
			content = hlsURLRE.ReplaceAllString(content, fmt.Sprintf("data-hls-url=%q", endpoints.HLS))
		}
		if endpoints.Dash != "" {
			content = dashURLRE.ReplaceAllString(content, fmt.Sprintf("data-dash-url=%q", endpoints.Dash))
		}
		if endpoints.VodBucket != "" {
			content = vodBucketRE.ReplaceAllString(content, fmt.Sprintf("data-vod-bucket=%q", endpoints.VodBucket))
		}
		if err := writeIndex(indexPath, content); err != nil {
			return err
		}
		logging.Info("Updated streaming endpoints in index.html")
		return nil
	}

	match := commButtonsRE.FindString(content)
	if match == "" {
		return fmt.Errorf("communication buttons section not found in %s", indexPath)
	}

	content = strings.Replace(content, match, match+streamingButtonsBlock(endpoints), 1)
	if err := writeIndex(indexPath, content); err != nil {
		return err
	}

	logging.Info("Added streaming buttons to index.html")
	return nil
}

// streamingButtonsBlock renders the playback buttons, video modal and
// player script. Endpoints live in data attributes so later deploys can
// rewrite them in place.
func streamingButtonsBlock(endpoints StreamingEndpoints) string {
	return fmt.Sprintf(`
<div class="streaming-buttons" id="streaming-buttons" data-hls-url=%q data-dash-url=%q data-vod-bucket=%q>
  <button class="btn btn-primary" onclick="playLiveStream()">
    <i class="fas fa-broadcast-tower"></i> Live Stream
  </button>
  <button class="btn btn-primary" onclick="playVOD()">
    <i class="fas fa-film"></i> Video on Demand
  </button>
</div>

<div id="video-modal" class="modal">
  <div class="modal-content">
    <span class="close-button" onclick="closeVideoModal()">&times;</span>
    <h2 id="video-title">Video Player</h2>
    <video id="video-player" controls></video>
  </div>
</div>

<script src="https://cdn.jsdelivr.net/npm/hls.js@latest"></script>
<script>
  const streamingButtons = document.getElementById('streaming-buttons');
  const videoModal = document.getElementById('video-modal');
  const videoPlayer = document.getElementById('video-player');
  const videoTitle = document.getElementById('video-title');

  function playHlsSource(url) {
    if (Hls.isSupported()) {
      const hls = new Hls();
      hls.loadSource(url);
      hls.attachMedia(videoPlayer);
      hls.on(Hls.Events.MANIFEST_PARSED, function() {
        videoPlayer.play();
      });
    } else if (videoPlayer.canPlayType('application/vnd.apple.mpegurl')) {
      videoPlayer.src = url;
      videoPlayer.play();
    }
    videoModal.style.display = 'block';
  }

  function playLiveStream() {
    videoTitle.textContent = 'Live Stream';
    playHlsSource(streamingButtons.dataset.hlsUrl);
  }

  function playVOD() {
    videoTitle.textContent = 'Video on Demand';
    playHlsSource('https://d2zihajmogu5jn.cloudfront.net/big-buck-bunny/master.m3u8');
  }

  function closeVideoModal() {
    videoModal.style.display = 'none';
    videoPlayer.pause();
    videoPlayer.src = '';
  }

  window.onclick = function(event) {
    if (event.target == videoModal) {
      closeVideoModal();
    }
  };
</script>

<style>
  .streaming-buttons {
    display: flex;
    gap: 10px;
    margin-left: 20px;
  }

  .modal {
    display: none;
    position: fixed;
    z-index: 1000;
    left: 0;
    top: 0;
    width: 100%%;
    height: 100%%;
    overflow: auto;
    background-color: rgba(0,0,0,0.7);
  }

  .modal-content {
    background-color: #fefefe;
    margin: 10%% auto;
    padding: 20px;
    border: 1px solid #888;
    width: 80%%;
    max-width: 800px;
    border-radius: 5px;
  }

  .close-button {
    color: #aaa;
    float: right;
    font-size: 28px;
    font-weight: bold;
    cursor: pointer;
  }

  #video-player {
    width: 100%%;
    max-height: 450px;
    margin-top: 15px;
  }
</style>`, endpoints.HLS, endpoints.Dash, endpoints.VodBucket)
}

func readIndex(indexPath string) (string, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", indexPath, err)
	}
	return string(data), nil
}

func writeIndex(indexPath string, content string) error {
	if err := os.WriteFile(indexPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", indexPath, err)
	}
	return nil
}
