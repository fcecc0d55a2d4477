// Package slack connects the bot service to Slack.
//
// [Notifier] implements bot.Notifier on top of the Web API: broadcasts go
// to chat.postMessage (threaded when the queue is thread scoped), private
// replies go to the command's response_url or, when there is none, to
// chat.postEphemeral.
//
// The Parse* functions decode the three inbound payloads Slack sends: slash
// commands, Events API callbacks (app mentions) and block action
// interactions. Slash commands carry no thread context and always address
// the channel-wide queue; mentions and buttons inside a thread address that
// thread's queue.
package slack
