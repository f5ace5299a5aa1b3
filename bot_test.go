package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kaspanet/kaspad/util"
	"gopkg.in/telebot.v4"
)

// fakeContext implements the parts of telebot.Context the gateway uses.
// Anything else panics through the nil embedded interface.
type fakeContext struct {
	telebot.Context

	chat    *telebot.Chat
	msg     *telebot.Message
	sent    []string
	sendOpt [][]interface{}
	edited  []string
	editErr error
	deleted int
	answers int
}

func newFakeContext(chatType telebot.ChatType, chatID int64, text string) *fakeContext {
	chat := &telebot.Chat{ID: chatID, Type: chatType}
	msg := &telebot.Message{Chat: chat, Text: text}
	if i := strings.IndexByte(text, ' '); i >= 0 {
		msg.Payload = strings.TrimSpace(text[i+1:])
	}
	return &fakeContext{chat: chat, msg: msg}
}

func (c *fakeContext) Chat() *telebot.Chat       { return c.chat }
func (c *fakeContext) Message() *telebot.Message { return c.msg }
func (c *fakeContext) Text() string              { return c.msg.Text }
func (c *fakeContext) Delete() error {
	c.deleted++
	return nil
}
func (c *fakeContext) Send(what interface{}, opts ...interface{}) error {
	c.sent = append(c.sent, what.(string))
	c.sendOpt = append(c.sendOpt, opts)
	return nil
}
func (c *fakeContext) Edit(what interface{}, opts ...interface{}) error {
	c.edited = append(c.edited, what.(string))
	return c.editErr
}
func (c *fakeContext) Respond(...*telebot.CallbackResponse) error {
	c.answers++
	return nil
}

type fakePrices struct {
	price float64
	err   error
	calls int
}

func (p *fakePrices) KASPrice(context.Context, string) (float64, error) {
	p.calls++
	return p.price, p.err
}

func newTestGateway(t *testing.T, node *fakeNode, prices *fakePrices) (*Gateway, *fakeClock) {
	t.Helper()
	cfg := validTestConfig(t)
	clock := newFakeClock()
	g, err := NewGateway(cfg, node, prices, NewDebouncer(clock.Now), nil)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return g, clock
}

func countingHandler(n *int) telebot.HandlerFunc {
	return func(telebot.Context) error {
		*n++
		return nil
	}
}

func TestCommandName(t *testing.T) {
	tests := map[string]string{
		"/price":                "/price",
		"/Price@KaspaBot":       "/price",
		"  /mining_reward 1 TH": "/mining_reward",
		"/balance@Bot kaspa:qq": "/balance",
		"":                      "",
	}
	for in, want := range tests {
		if got := commandName(in); got != want {
			t.Fatalf("commandName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCommandPayload(t *testing.T) {
	c := newFakeContext(telebot.ChatPrivate, 1, "/balance kaspa:qq")
	if got := commandPayload(c); got != "kaspa:qq" {
		t.Fatalf("payload = %q", got)
	}
	c.msg.Payload = ""
	if got := commandPayload(c); got != "kaspa:qq" {
		t.Fatalf("payload from text = %q", got)
	}
	if got := commandPayload(newFakeContext(telebot.ChatPrivate, 1, "/balance")); got != "" {
		t.Fatalf("empty payload = %q", got)
	}
}

func TestDebouncedMiddleware(t *testing.T) {
	g, clock := newTestGateway(t, newFakeNode(), &fakePrices{})
	var calls int
	h := g.debounced(g.cfg.PriceDebounce)(countingHandler(&calls))

	first := newFakeContext(telebot.ChatGroup, -5, "/price")
	if err := h(first); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	dup := newFakeContext(telebot.ChatGroup, -5, "/price@KaspaBot")
	if err := h(dup); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
	if dup.deleted != 1 || first.deleted != 0 {
		t.Fatalf("deleted first=%d dup=%d, want 0/1", first.deleted, dup.deleted)
	}

	other := newFakeContext(telebot.ChatGroup, -6, "/price")
	_ = h(other)
	if calls != 2 {
		t.Fatalf("other chat was suppressed")
	}

	clock.Advance(g.cfg.PriceDebounce + 1)
	_ = h(newFakeContext(telebot.ChatGroup, -5, "/price"))
	if calls != 3 {
		t.Fatalf("command after window was suppressed")
	}
}

func TestPrivateOnlyMiddleware(t *testing.T) {
	g, _ := newTestGateway(t, newFakeNode(), &fakePrices{})
	var calls int
	h := g.privateOnly(countingHandler(&calls))

	group := newFakeContext(telebot.ChatSuperGroup, -100, "/balance kaspa:qq")
	_ = h(group)
	if calls != 0 || group.deleted != 1 {
		t.Fatalf("group use: calls=%d deleted=%d", calls, group.deleted)
	}
	_ = h(newFakeContext(telebot.ChatPrivate, 7, "/balance kaspa:qq"))
	if calls != 1 {
		t.Fatalf("private use was rejected")
	}
}

func TestRequireParamMiddleware(t *testing.T) {
	g, _ := newTestGateway(t, newFakeNode(), &fakePrices{})
	var calls int
	h := g.requireParam(countingHandler(&calls))

	bare := newFakeContext(telebot.ChatPrivate, 7, "/mining_reward   ")
	_ = h(bare)
	if calls != 0 || bare.deleted != 1 {
		t.Fatalf("bare command: calls=%d deleted=%d", calls, bare.deleted)
	}
	_ = h(newFakeContext(telebot.ChatPrivate, 7, "/mining_reward 1 TH"))
	if calls != 1 {
		t.Fatalf("command with payload was rejected")
	}
}

func TestHandlePrice(t *testing.T) {
	prices := &fakePrices{price: 0.1234}
	g, _ := newTestGateway(t, newFakeNode(), prices)

	c := newFakeContext(telebot.ChatGroup, -1, "/price")
	if err := g.handlePrice(c); err != nil {
		t.Fatalf("handlePrice: %v", err)
	}
	if len(c.sent) != 1 || c.sent[0] != "Current KAS price: *123,400 USD* per 1M KAS" {
		t.Fatalf("sent %q", c.sent)
	}
	var hasMarkup bool
	for _, o := range c.sendOpt[0] {
		if o == g.priceMarkup {
			hasMarkup = true
		}
	}
	if !hasMarkup {
		t.Fatal("price reply has no update button")
	}

	prices.err = ErrPriceUnavailable
	failed := newFakeContext(telebot.ChatGroup, -1, "/price")
	if err := g.handlePrice(failed); err != nil {
		t.Fatalf("handlePrice with oracle down: %v", err)
	}
	if len(failed.sent) != 0 {
		t.Fatalf("oracle failure must not reply, sent %q", failed.sent)
	}
}

func TestHandleMiningReward(t *testing.T) {
	node := newFakeNode()
	node.stats = ChainStats{NetworkHashrate: 1_000_000_000_000_000, DAAScore: 1}
	g, _ := newTestGateway(t, node, &fakePrices{})

	tests := []struct {
		text string
		want string
	}{
		{"/mining_reward 10 TH/s", "*Mining rewards for 10.00 TH/s*"},
		{"/mining_reward fast", "Hashrate not understood"},
		{"/mining_reward 2 PH", "2.00 PH/s is more than the whole network (1.00 PH/s)."},
	}
	for _, tt := range tests {
		c := newFakeContext(telebot.ChatPrivate, 3, tt.text)
		if err := g.handleMiningReward(c); err != nil {
			t.Fatalf("%s: %v", tt.text, err)
		}
		if len(c.sent) != 1 || !strings.Contains(c.sent[0], tt.want) {
			t.Fatalf("%s: sent %q, want it to contain %q", tt.text, c.sent, tt.want)
		}
	}

	node.stats = ChainStats{NetworkHashrate: 0, DAAScore: 1}
	c := newFakeContext(telebot.ChatPrivate, 3, "/mining_reward 1 KH")
	if err := g.handleMiningReward(c); err != nil {
		t.Fatalf("zero network: %v", err)
	}
	if len(c.sent) != 1 || !strings.Contains(c.sent[0], "Network hashrate unavailable") {
		t.Fatalf("zero network reply %q", c.sent)
	}
	if strings.Contains(c.sent[0], "more than the whole network") {
		t.Fatalf("zero network answered as oversized hashrate: %q", c.sent[0])
	}

	node.statsErr = ErrChainUnavailable
	c = newFakeContext(telebot.ChatPrivate, 3, "/mining_reward 1 TH")
	if err := g.handleMiningReward(c); err != nil {
		t.Fatalf("chain down: %v", err)
	}
	if len(c.sent) != 0 {
		t.Fatalf("chain failure must not reply, sent %q", c.sent)
	}
}

func TestHandleBalance(t *testing.T) {
	node := newFakeNode()
	g, _ := newTestGateway(t, node, &fakePrices{})
	addr := testKaspaAddress(t, util.Bech32PrefixKaspa, 3)
	node.balances[addr] = 250_000_000

	c := newFakeContext(telebot.ChatPrivate, 3, "/balance "+strings.ToUpper(addr))
	if err := g.handleBalance(c); err != nil {
		t.Fatalf("handleBalance: %v", err)
	}
	if len(c.sent) != 1 || !strings.Contains(c.sent[0], "2.5 KAS") || !strings.Contains(c.sent[0], addr) {
		t.Fatalf("sent %q", c.sent)
	}

	bad := newFakeContext(telebot.ChatPrivate, 3, "/balance kaspa:nope")
	_ = g.handleBalance(bad)
	if len(bad.sent) != 1 || bad.sent[0] != "kaspa wallet not valid." {
		t.Fatalf("invalid address reply %q", bad.sent)
	}
}

func TestHandleDevfund(t *testing.T) {
	node := newFakeNode()
	g, _ := newTestGateway(t, node, &fakePrices{})

	c := newFakeContext(telebot.ChatPrivate, 3, "/devfund")
	_ = g.handleDevfund(c)
	if len(c.sent) != 1 || c.sent[0] != "Devfund addresses are not configured." {
		t.Fatalf("unconfigured devfund reply %q", c.sent)
	}

	g.cfg.DevfundMiningAddress = testKaspaAddress(t, util.Bech32PrefixKaspa, 5)
	g.cfg.DevfundDonationAddress = testKaspaAddress(t, util.Bech32PrefixKaspa, 6)
	node.balances[g.cfg.DevfundMiningAddress] = 300_000_000
	node.balances[g.cfg.DevfundDonationAddress] = 100_000_000
	c = newFakeContext(telebot.ChatPrivate, 3, "/devfund")
	_ = g.handleDevfund(c)
	if len(c.sent) != 1 || !strings.Contains(c.sent[0], "4 KAS") {
		t.Fatalf("devfund reply %q", c.sent)
	}
}

func TestHandleIDAndDonate(t *testing.T) {
	g, _ := newTestGateway(t, newFakeNode(), &fakePrices{})
	c := newFakeContext(telebot.ChatGroup, -4242, "/id")
	_ = g.handleID(c)
	if len(c.sent) != 1 || c.sent[0] != "Chat-Id: -4242" {
		t.Fatalf("id reply %q", c.sent)
	}
	d := newFakeContext(telebot.ChatGroup, -4242, "/donate")
	_ = g.handleDonate(d)
	if len(d.sent) != 1 || !strings.Contains(d.sent[0], g.cfg.DonationAddress) {
		t.Fatalf("donate reply %q", d.sent)
	}
}

func TestUpdateButtonEditsAndAnswers(t *testing.T) {
	prices := &fakePrices{price: 0.2}
	g, _ := newTestGateway(t, newFakeNode(), prices)

	c := newFakeContext(telebot.ChatGroup, -1, "")
	c.editErr = errors.New("telegram: Bad Request: message is not modified (400)")
	if err := g.onPriceUpdate(c); err != nil {
		t.Fatalf("not-modified edit must be ignored, got %v", err)
	}
	if len(c.edited) != 1 || !strings.Contains(c.edited[0], "200,000 USD") {
		t.Fatalf("edited %q", c.edited)
	}
	if c.answers != 1 {
		t.Fatalf("callback answered %d times, want 1", c.answers)
	}

	prices.err = ErrTimeout
	c2 := newFakeContext(telebot.ChatGroup, -1, "")
	if err := g.onPriceUpdate(c2); err != nil {
		t.Fatalf("oracle failure: %v", err)
	}
	if len(c2.edited) != 0 || c2.answers != 1 {
		t.Fatalf("oracle failure: edited=%d answers=%d", len(c2.edited), c2.answers)
	}
}

func TestCommandTableGuards(t *testing.T) {
	g, _ := newTestGateway(t, newFakeNode(), &fakePrices{})
	guards := map[string]int{}
	for _, cmd := range g.commands() {
		guards[cmd.name] = len(cmd.guards)
	}
	want := map[string]int{
		"donate": 1, "balance": 2, "devfund": 1, "coin_supply": 1, "price": 1,
		"wallet": 1, "mining_reward": 2, "id": 0, "chart": 0, "mcap": 1,
		"hashrate": 1, "buy": 1, "languages": 1,
	}
	if len(guards) != len(want) {
		t.Fatalf("got %d commands, want %d", len(guards), len(want))
	}
	for name, n := range want {
		got, ok := guards[name]
		if !ok {
			t.Fatalf("command %s not registered", name)
		}
		if got != n {
			t.Fatalf("command %s has %d guards, want %d", name, got, n)
		}
	}
}
