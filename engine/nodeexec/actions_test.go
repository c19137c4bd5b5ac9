package nodeexec

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Abraxas-365/flowpilot/engine"
	"github.com/Abraxas-365/flowpilot/engine/enginetest"
	"github.com/Abraxas-365/flowpilot/pkg/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectDetailsExecutor(t *testing.T) {
	flow := enginetest.Flow("f1",
		enginetest.Node("cd", "", &engine.CollectDetailsData{Text: "Tell us more", Attributes: []string{"email", "age"}}),
		enginetest.Node("thanks", "cd", &engine.MessageData{Text: "Thanks"}),
	)
	store := enginetest.NewConversationStore()
	e := NewCollectDetailsExecutor(store)
	turn := newTurn(flow)

	result, err := e.Execute(context.Background(), turn, mustNode(t, turn, "cd"))
	require.NoError(t, err)
	assert.Equal(t, engine.Suspend(), result)
	require.Len(t, turn.Items, 1)
	assert.Equal(t, engine.ItemTypeCollectDetailsForm, turn.Items[0].Type)
	assert.JSONEq(t, `{"attributes":["email","age"]}`, string(turn.Items[0].Data))

	// el formulario ya fue persistido; llega el envío
	store.AddItem(turn.Items[0])
	store.AddItem(engine.ConversationItem{
		ID:             "sub-1",
		ConversationID: turn.Conversation.ID,
		Type:           engine.ItemTypeSubmittedFormData,
		Author:         engine.AuthorUser,
		Data:           json.RawMessage(`{"age":33,"email":"ann@example.com","ignored":"x"}`),
	})
	turn.Session.WaitForUserInput("cd")
	turn.Items = nil

	result, err = e.Execute(context.Background(), withInput(turn, ""), mustNode(t, turn, "cd"))
	require.NoError(t, err)
	assert.Equal(t, engine.Advance("thanks"), result)
	assert.Equal(t, []string{"email", "age"}, turn.Session.Attributes.Names())

	age, _ := turn.Session.Attributes.Get("age")
	assert.Equal(t, 33.0, age)
}

func TestCollectDetailsExecutor_RejectsWithoutSubmission(t *testing.T) {
	flow := enginetest.Flow("f1",
		enginetest.Node("cd", "", &engine.CollectDetailsData{Attributes: []string{"email"}}),
	)
	store := enginetest.NewConversationStore()
	turn := newTurn(flow)
	store.AddUserMessage(turn.Conversation.ID, "m1", "hello")
	store.AddUserMessage(turn.Conversation.ID, "m2", "anyone?")
	turn.Session.WaitForUserInput("cd")

	result, err := NewCollectDetailsExecutor(store).Execute(context.Background(), withInput(turn, "anyone?"), mustNode(t, turn, "cd"))
	require.NoError(t, err)
	assert.Equal(t, engine.Reject(), result)
	assert.Empty(t, turn.Session.Attributes)
}

func TestSetAttributeExecutor(t *testing.T) {
	flow := enginetest.Flow("f1",
		enginetest.Node("sa", "", &engine.SetAttributeData{Attributes: []engine.AttributeAssignment{
			{Name: "greeting", Value: "Hi {user.firstName}"},
			{Name: "score", Type: engine.AttributeTypeNumber, Value: " 42 "},
			{Name: "vip", Type: engine.AttributeTypeBoolean, Value: "true"},
			{Name: "tags", Type: engine.AttributeTypeJSON, Value: `["a","b"]`},
			{Name: "broken", Type: engine.AttributeTypeNumber, Value: "n/a"},
		}}),
	)
	turn := newTurn(flow)

	result, err := NewSetAttributeExecutor().Execute(context.Background(), turn, mustNode(t, turn, "sa"))
	require.NoError(t, err)
	assert.Equal(t, engine.Halt(), result)

	assert.Equal(t, engine.Attributes{
		{Name: "greeting", Type: engine.AttributeTypeString, Value: "Hi Ann"},
		{Name: "score", Type: engine.AttributeTypeNumber, Value: 42.0},
		{Name: "vip", Type: engine.AttributeTypeBoolean, Value: true},
		{Name: "tags", Type: engine.AttributeTypeJSON, Value: []any{"a", "b"}},
		{Name: "broken", Type: engine.AttributeTypeString, Value: "n/a"},
	}, turn.Session.Attributes)
}

func TestAddTagsExecutor(t *testing.T) {
	flow := enginetest.Flow("f1",
		enginetest.Node("tags", "", &engine.AddTagsData{Tags: []string{"vip", "missing", "vip"}, Target: engine.TagTargetBoth}),
		enginetest.Node("next", "tags", &engine.MessageData{Text: "ok"}),
	)
	store := enginetest.NewTagStore(map[string]kernel.TagID{"vip": "tag-vip"})
	turn := newTurn(flow)

	result, err := NewAddTagsExecutor(store).Execute(context.Background(), turn, mustNode(t, turn, "tags"))
	require.NoError(t, err)
	assert.Equal(t, engine.Advance("next"), result)
	assert.Equal(t, []kernel.TagID{"tag-vip"}, store.ConversationTags[turn.Conversation.ID])
	assert.Equal(t, []kernel.TagID{"tag-vip"}, store.UserTags["user-1"])
}

func TestTransferExecutor(t *testing.T) {
	flow := enginetest.Flow("f1",
		enginetest.Node("tr", "", &engine.TransferData{Text: "Connecting you, {user.firstName}", GroupID: "billing"}),
	)
	store := enginetest.NewConversationStore()
	assigner := enginetest.NewAgentAssigner()
	assigner.Available["billing"] = "agent-7"
	turn := newTurn(flow)
	store.AddConversation(turn.Conversation)

	result, err := NewTransferExecutor(store, assigner).Execute(context.Background(), turn, mustNode(t, turn, "tr"))
	require.NoError(t, err)
	assert.Equal(t, engine.Halt(), result)

	assert.Equal(t, "Connecting you, Ann", turn.Items[0].Body)
	assert.Equal(t, kernel.GroupID("billing"), turn.Conversation.GroupID)
	assert.Equal(t, kernel.AgentID("agent-7"), assigner.Assignments[turn.Conversation.ID])
	require.Len(t, store.Events, 1)
	assert.Equal(t, engine.EventTransferredByAIAgent, store.Events[0].Event)
}

func TestTransferExecutor_AssignmentFailure(t *testing.T) {
	flow := enginetest.Flow("f1", enginetest.Node("tr", "", &engine.TransferData{AgentID: "agent-1"}))
	assigner := enginetest.NewAgentAssigner()
	assigner.Err = errors.New("agent offline")
	turn := newTurn(flow)

	_, err := NewTransferExecutor(enginetest.NewConversationStore(), assigner).Execute(context.Background(), turn, mustNode(t, turn, "tr"))
	assert.Error(t, err)
}

func TestCloseConversationExecutor(t *testing.T) {
	flow := enginetest.Flow("f1", enginetest.Node("close", "", &engine.CloseConversationData{Text: "Bye"}))
	store := enginetest.NewConversationStore()
	turn := newTurn(flow)
	store.AddConversation(turn.Conversation)

	result, err := NewCloseConversationExecutor(store).Execute(context.Background(), turn, mustNode(t, turn, "close"))
	require.NoError(t, err)
	assert.Equal(t, engine.Halt(), result)
	assert.True(t, turn.Conversation.IsClosed())
	require.Len(t, store.Events, 1)
	assert.Equal(t, engine.EventClosedByAIAgent, store.Events[0].Event)
	assert.Equal(t, "Bye", turn.Items[0].Body)
}

func TestGoToStepExecutor(t *testing.T) {
	flow := enginetest.Flow("f1",
		enginetest.Node("b1", "", &engine.ButtonsData{Text: "pick"}),
		enginetest.Node("arm", "b1", &engine.ButtonArmData{Label: "x"}),
		enginetest.Node("target", "arm", &engine.MessageData{Text: "t"}),
		enginetest.Node("jump", "target", &engine.GoToStepData{TargetNodeID: "arm"}),
		enginetest.Node("dangling", "target", &engine.GoToStepData{TargetNodeID: "nope"}),
	)
	turn := newTurn(flow)
	e := NewGoToStepExecutor()

	result, err := e.Execute(context.Background(), turn, mustNode(t, turn, "jump"))
	require.NoError(t, err)
	assert.Equal(t, engine.Advance("target"), result)

	_, err = e.Execute(context.Background(), turn, mustNode(t, turn, "dangling"))
	assert.Error(t, err)
}

func TestGoToFlowExecutor(t *testing.T) {
	target := enginetest.Flow("f2", enginetest.Node("hello", "", &engine.MessageData{Text: "hello"}))
	target.IsDefault = false
	source := enginetest.Flow("f1", enginetest.Node("go", "", &engine.GoToFlowData{FlowID: "f2"}))
	flows := enginetest.NewFlowRepository(source, target)
	turn := newTurn(source)

	result, err := NewGoToFlowExecutor(flows).Execute(context.Background(), turn, mustNode(t, turn, "go"))
	require.NoError(t, err)
	assert.Equal(t, engine.Advance("hello"), result)
	assert.Equal(t, kernel.FlowID("f2"), turn.Session.ActiveFlowID)
	assert.Equal(t, "f2", turn.Graph.FlowID)
}

func TestGoToFlowExecutor_SelfLoopHalts(t *testing.T) {
	flow := enginetest.Flow("f1", enginetest.Node("go", "", &engine.GoToFlowData{FlowID: "f1"}))
	turn := newTurn(flow)

	result, err := NewGoToFlowExecutor(enginetest.NewFlowRepository(flow)).Execute(context.Background(), turn, mustNode(t, turn, "go"))
	require.NoError(t, err)
	assert.Equal(t, engine.Halt(), result)
	assert.Equal(t, kernel.FlowID("f1"), turn.Session.ActiveFlowID)
}

func TestArticlesExecutor(t *testing.T) {
	flow := enginetest.Flow("f1",
		enginetest.Node("art", "", &engine.ArticlesData{Text: "These may help", ArticleIDs: []kernel.ArticleID{"a2", "a1", "gone"}}),
	)
	store := &enginetest.ArticleStore{Articles: []engine.Article{
		{ID: "a1", Title: "Refunds"},
		{ID: "a2", Title: "Shipping"},
	}}
	turn := newTurn(flow)

	result, err := NewArticlesExecutor(store).Execute(context.Background(), turn, mustNode(t, turn, "art"))
	require.NoError(t, err)
	assert.Equal(t, engine.Halt(), result)

	require.Len(t, turn.Items, 2)
	assert.Equal(t, "These may help", turn.Items[0].Body)
	assert.Equal(t, engine.ItemTypeArticles, turn.Items[1].Type)

	var payload struct {
		Articles []engine.Article `json:"articles"`
	}
	require.NoError(t, json.Unmarshal(turn.Items[1].Data, &payload))
	require.Len(t, payload.Articles, 2)
	assert.Equal(t, "Shipping", payload.Articles[0].Title)
	assert.Equal(t, "Refunds", payload.Articles[1].Title)
}

func TestCoerceAttribute(t *testing.T) {
	v, typ := CoerceAttribute("2024-06-01", engine.AttributeTypeDate)
	assert.Equal(t, engine.AttributeTypeDate, typ)
	require.IsType(t, time.Time{}, v)
	assert.True(t, v.(time.Time).Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))

	v, typ = CoerceAttribute("{not json", engine.AttributeTypeJSON)
	assert.Equal(t, engine.AttributeTypeString, typ)
	assert.Equal(t, "{not json", v)
}
