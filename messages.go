package main

import "fmt"

// Commands users reply with.
const (
	cmdCancel = "取消"
	cmdLeave  = "掰掰"
)

const (
	msgAlreadyMatching = "你已經在配對中囉，請稍候 [error]"
	msgMatching        = "配對中 [loading] \n回覆 取消 可以取消這次配對喔！"
	msgCancelled       = "幫你取消這次配對了 [error]"
	msgMatched         = "配對成功 [ok]"
)

func msgLeft(nick string) string {
	return fmt.Sprintf("@%s 離開了這個對話", nick)
}

func msgMatchedLink(url string) string {
	return msgMatched + "\n" + url
}

// msgChatIntro opens the private chat plurk created for a matched pair.
func msgChatIntro(nick1, content1, nick2, content2 string) string {
	return fmt.Sprintf("%s\n\n@%s: %s\n\n@%s: %s", msgMatched, nick1, content1, nick2, content2)
}
