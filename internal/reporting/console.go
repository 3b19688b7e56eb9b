package reporting

import (
	"fmt"
	"io"
	"sync"

	"token-metadata-lab/internal/domain"
)

// stepLabels are the console headings of completed steps.
var stepLabels = map[string]string{
	domain.StepAirdrop:                 "Payer funded:",
	domain.StepCreateTokenAndMint:      "Token created and minted:",
	domain.StepRemoveMetadataField:     "Metadata field removed:",
	domain.StepRemoveTokenAuthority:    "Authority removed:",
	domain.StepIncrementPoints:         "Points incremented:",
	domain.StepTransferTokens:          "Tokens transferred:",
	domain.StepRevokeMetadataAuthority: "Metadata authority revoked:",
}

// Label returns the console heading for a step name.
func Label(step string) string {
	if l, ok := stepLabels[step]; ok {
		return l
	}
	return step + ":"
}

// Console prints completed steps as a label line followed by one indented
// explorer URL per transaction.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a Console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// ReportStep prints a succeeded step. Failed steps are left to the error log.
func (c *Console) ReportStep(step *domain.StepRecord) {
	if step.Status != domain.StepStatusSucceeded {
		return
	}
	c.Print(Label(step.Name), step.ExplorerURLs...)
}

// Print writes label and the given lines, each indented by three spaces.
func (c *Console) Print(label string, lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w, label)
	for _, l := range lines {
		fmt.Fprintf(c.w, "   %s\n", l)
	}
}

// Mint prints the explorer link of the mint account.
func (c *Console) Mint(url string) {
	c.Print("Mint account:", url)
}

// Balances prints the token balances of payer and recipient.
func (c *Console) Balances(payer, recipient uint64) {
	c.Print("Token balances:",
		fmt.Sprintf("payer: %d", payer),
		fmt.Sprintf("recipient: %d", recipient),
	)
}
